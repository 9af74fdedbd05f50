// Package report renders analytics snapshots as text or CSV documents.
//
// Every rendering consumes the aggregator's dashboard snapshot as is;
// totals are never re-derived here.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tphakala/fruitcount-go/internal/analytics"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// Supported report formats.
const (
	FormatText = "text"
	FormatCSV  = "csv"
)

// fileNameWidth caps the file column in the text table.
const fileNameWidth = 30

// timeLayout is the timestamp format used in report rows.
const timeLayout = "2006-01-02 15:04:05"

// Write renders the dashboard in the named format. An empty format renders
// text.
func Write(w io.Writer, format string, dash *analytics.Dashboard) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, dash)
	case FormatText, "", "txt":
		return WriteText(w, dash)
	default:
		return errors.Newf("unsupported report format %q", format).
			Component("report").
			Category(errors.CategoryValidation).
			Context("supported", "text, csv").
			Build()
	}
}

// WriteText writes an aligned text report with the summary, per-class
// totals and recent request blocks.
func WriteText(w io.Writer, dash *analytics.Dashboard) error {
	if dash == nil {
		return nilDashboardError()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Fruit Counting Report\n")
	fmt.Fprintf(tw, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04"))

	fmt.Fprintf(tw, "Summary\n")
	fmt.Fprintf(tw, "Total requests:\t%d\n", dash.Summary.TotalRequests)
	fmt.Fprintf(tw, "Total fruits:\t%d\n", dash.Summary.TotalFruits)
	fmt.Fprintf(tw, "Average per request:\t%.2f\n\n", dash.Summary.AvgPerRequest)

	fmt.Fprintf(tw, "Counts by class\n")
	if len(dash.CountsByClass) == 0 {
		fmt.Fprintf(tw, "No detections recorded\n")
	} else {
		fmt.Fprintf(tw, "Class\tCount\n")
		for _, cc := range sortedClasses(dash.CountsByClass) {
			fmt.Fprintf(tw, "%s\t%d\n", cc.Class, cc.Count)
		}
	}
	fmt.Fprintf(tw, "\n")

	fmt.Fprintf(tw, "Recent requests\n")
	fmt.Fprintf(tw, "ID\tFile\tCounts\tTotal\tModel\tCreated\tTime (ms)\n")
	for i := range dash.Recent {
		req := &dash.Recent[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%d\n",
			req.ID,
			truncate(req.Filename, fileNameWidth),
			formatCounts(req),
			req.TotalCount,
			req.ModelName,
			req.CreatedAt.Format(timeLayout),
			req.ProcessingMs)
	}

	if err := tw.Flush(); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("operation", "render_text").
			Build()
	}
	return nil
}

// WriteCSV writes the summary, per-class totals and recent request blocks
// as CSV, separated by empty records.
func WriteCSV(w io.Writer, dash *analytics.Dashboard) error {
	if dash == nil {
		return nilDashboardError()
	}

	rows := [][]string{
		{"Total Requests", "Total Fruits", "Avg Per Request"},
		{
			strconv.FormatInt(dash.Summary.TotalRequests, 10),
			strconv.FormatInt(dash.Summary.TotalFruits, 10),
			strconv.FormatFloat(dash.Summary.AvgPerRequest, 'f', 2, 64),
		},
		{},
		{"Class", "Count"},
	}
	for _, cc := range sortedClasses(dash.CountsByClass) {
		rows = append(rows, []string{cc.Class, strconv.Itoa(cc.Count)})
	}

	rows = append(rows,
		[]string{},
		[]string{"ID", "Filename", "Counts", "Total Count", "Model", "Created At", "Processing Ms"})
	for i := range dash.Recent {
		req := &dash.Recent[i]
		rows = append(rows, []string{
			strconv.FormatUint(uint64(req.ID), 10),
			req.Filename,
			formatCounts(req),
			strconv.Itoa(req.TotalCount),
			req.ModelName,
			req.CreatedAt.Format(timeLayout),
			strconv.FormatInt(req.ProcessingMs, 10),
		})
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("operation", "render_csv").
			Build()
	}
	return nil
}

func nilDashboardError() error {
	return errors.Newf("report requires a dashboard snapshot").
		Component("report").
		Category(errors.CategoryValidation).
		Build()
}

// classCount is one row of the per-class totals table.
type classCount struct {
	Class string
	Count int
}

// sortedClasses orders class totals by count descending, then name, so
// report output is stable.
func sortedClasses(totals map[string]int) []classCount {
	out := make([]classCount, 0, len(totals))
	for class, count := range totals {
		out = append(out, classCount{Class: class, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// formatCounts renders a record's per-class counts as sorted name=count
// pairs. Records with malformed counts render an empty cell rather than
// failing the report.
func formatCounts(req *datastore.Request) string {
	counts, err := req.CountsAsInts()
	if err != nil || len(counts) == 0 {
		return ""
	}

	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	pairs := make([]string, 0, len(classes))
	for _, class := range classes {
		pairs = append(pairs, fmt.Sprintf("%s=%d", class, counts[class]))
	}
	return strings.Join(pairs, " ")
}

// truncate limits a column value to the given number of characters.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
