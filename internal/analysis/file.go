package analysis

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// Output formats for one-shot results.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// FileAnalysis counts fruit in a single image file and writes the result
// to stdout, plus a result file when an output directory is configured.
func FileAnalysis(settings *conf.Settings) error {
	fileInfo, err := os.Stat(settings.Input.Path)
	if err != nil {
		return fmt.Errorf("error accessing the path: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("the path %s is a directory, not a file", settings.Input.Path)
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

	result, err := pipe.ProcessFile(ctx, settings.Input.Path)
	if err != nil {
		return err
	}

	return writeResult(settings, result)
}

// writeResult renders the result to stdout and, when Output.File.Path is
// set, to a file named after the input in that directory.
func writeResult(settings *conf.Settings, result *pipeline.Result) error {
	if err := renderResult(os.Stdout, settings.Output.File.Type, result); err != nil {
		return err
	}

	if settings.Output.File.Path == "" {
		return nil
	}

	outputPath, err := saveResultFile(settings, settings.Input.Path, result)
	if err != nil {
		return err
	}

	fmt.Printf("Result written to %s\n", outputPath)
	return nil
}

// saveResultFile writes one result into the configured output directory,
// named after the input file. It returns the written path.
func saveResultFile(settings *conf.Settings, inputPath string, result *pipeline.Result) (string, error) {
	format := settings.Output.File.Type

	if err := os.MkdirAll(settings.Output.File.Path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := filepath.Base(inputPath) + resultExtension(format)
	outputPath := filepath.Join(settings.Output.File.Path, name)

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := renderResult(f, format, result); err != nil {
		return "", err
	}

	return outputPath, nil
}

// renderResult writes one result in the requested format. An empty format
// renders the table.
func renderResult(w io.Writer, format string, result *pipeline.Result) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return renderResultTable(w, result)
	case FormatCSV:
		return renderResultCSV(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unsupported output format %q, use table, csv or json", format)
	}
}

func renderResultTable(w io.Writer, result *pipeline.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "File:\t%s\n", result.Filename)
	fmt.Fprintf(tw, "Model:\t%s\n", result.ModelName)
	fmt.Fprintf(tw, "Total fruits:\t%d\n", result.TotalCount)
	fmt.Fprintf(tw, "Inference time:\t%d ms\n", result.ProcessingMs)
	if result.OutputReference != "" {
		fmt.Fprintf(tw, "Annotated image:\t%s\n", result.OutputReference)
	}

	if len(result.Counts) > 0 {
		fmt.Fprintf(tw, "\nClass\tCount\n")
		for _, cc := range sortedCounts(result.Counts) {
			fmt.Fprintf(tw, "%s\t%d\n", cc.class, cc.count)
		}
	} else {
		fmt.Fprintf(tw, "\nNo fruit detected\n")
	}

	return tw.Flush()
}

func renderResultCSV(w io.Writer, result *pipeline.Result) error {
	rows := [][]string{{"Filename", "Class", "Count"}}
	for _, cc := range sortedCounts(result.Counts) {
		rows = append(rows, []string{result.Filename, cc.class, strconv.Itoa(cc.count)})
	}

	cw := csv.NewWriter(w)
	return cw.WriteAll(rows)
}

// resultExtension maps a format to the output file extension.
func resultExtension(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

type classCount struct {
	class string
	count int
}

// sortedCounts orders counts by count descending, then class name, so
// output is stable.
func sortedCounts(counts map[string]int) []classCount {
	out := make([]classCount, 0, len(counts))
	for class, count := range counts {
		out = append(out, classCount{class: class, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].class < out[j].class
	})
	return out
}
