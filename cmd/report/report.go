package report

import (
	"github.com/spf13/cobra"
	"github.com/tphakala/fruitcount-go/internal/analysis"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Command creates a new command for rendering the aggregate counting report.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		format string
		recent int
		output string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the requests log",
		Long:  "Render totals, per-class counts and recent requests from the requests log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Report(settings, format, recent, output)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text, csv")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent requests to include")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}
