package classes

import (
	"github.com/spf13/cobra"
	"github.com/tphakala/fruitcount-go/internal/analysis"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Command creates a new command that prints the configured fruit classes
// and how they resolve against the model label table.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Show configured classes and their label indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.ShowClasses(settings)
		},
	}
}
