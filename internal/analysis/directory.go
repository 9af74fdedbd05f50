package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/fruitcount-go/internal/conf"
)

// DirectoryAnalysis counts fruit in every image file in a directory. Files
// are processed with a bounded worker pool; a failed file is reported and
// skipped, it does not abort the batch.
func DirectoryAnalysis(settings *conf.Settings) error {
	info, err := os.Stat(settings.Input.Path)
	if err != nil {
		return fmt.Errorf("error accessing the path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("the path %s is not a directory", settings.Input.Path)
	}

	files, err := collectImages(settings.Input.Path, settings.Input.Recursive, settings.Upload.AllowedExtensions)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found")
		return nil
	}

	if err := initializeDetector(settings, nil); err != nil {
		return err
	}
	defer releaseDetector()

	ds, err := openDataStore(settings, nil)
	if err != nil {
		return err
	}
	defer closeDataStore(ds)

	pipe, err := buildPipeline(settings, ds, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inference is serialized on the interpreter; extra workers overlap
	// decode and artifact rendering with it.
	workers := settings.Detector.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = clampInt(workers, 1, 8)

	fmt.Printf("Analyzing %d files with %d workers\n", len(files), workers)
	startTime := time.Now()

	var mu sync.Mutex
	var processed, failed, totalFruits int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := pipe.ProcessFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("❌ %s: %v\n", path, err)
				return nil
			}
			processed++
			totalFruits += result.TotalCount
			fmt.Printf("✅ %s: %d fruits (%s) in %d ms\n",
				path, result.TotalCount, formatCountsLine(result.Counts), result.ProcessingMs)

			if settings.Output.File.Path != "" {
				if _, err := saveResultFile(settings, path, result); err != nil {
					fmt.Printf("⚠️ %s: %v\n", path, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("directory analysis interrupted: %w", err)
	}

	fmt.Printf("\nProcessed %d of %d files (%d failed), %d fruits counted in %s\n",
		processed, len(files), failed, totalFruits,
		time.Since(startTime).Round(time.Millisecond))
	return nil
}

// collectImages lists image files under root in stable order, filtered by
// the allowed extensions. Subdirectories are skipped unless recursive.
func collectImages(root string, recursive bool, allowedExts []string) ([]string, error) {
	exts := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(d.Name()))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// formatCountsLine renders counts as sorted class=count pairs for progress
// output.
func formatCountsLine(counts map[string]int) string {
	if len(counts) == 0 {
		return "no fruit"
	}

	parts := make([]string, 0, len(counts))
	for _, cc := range sortedCounts(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", cc.class, cc.count))
	}
	return strings.Join(parts, " ")
}
