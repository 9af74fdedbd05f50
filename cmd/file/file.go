package file

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/fruitcount-go/internal/analysis"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Command creates a new file command for counting fruit in a single image.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [image.jpg]",
		Short: "Count fruit in an image file",
		Long:  "Run the detector against a single image file and print the per-class counts.",
		Args:  cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			return analysis.FileAnalysis(settings)
		},
	}

	// Set up flags specific to the 'file' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the file command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.Output.File.Path, "output", "o", "", "Path to output directory")
	cmd.Flags().StringVarP(&settings.Output.File.Type, "format", "f", "", "Output format: table, csv, json")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
