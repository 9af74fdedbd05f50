package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/fruitcount-go/internal/analytics"
	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/report"
)

// reportTimeout bounds the aggregate queries behind a report.
const reportTimeout = 30 * time.Second

// Report renders the aggregate counting report from the requests log to
// stdout, or to outputPath when one is given. The recent argument caps the
// recent requests section.
func Report(settings *conf.Settings, format string, recent int, outputPath string) error {
	ds, err := openDataStore(settings, nil)
	if err != nil {
		return err
	}
	defer closeDataStore(ds)

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	dash, err := analytics.Snapshot(ctx, ds, recent)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if outputPath == "" {
		return report.Write(os.Stdout, format, dash)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := report.Write(f, format, dash); err != nil {
		return err
	}

	fmt.Printf("Report written to %s\n", outputPath)
	return nil
}
