package directory

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/fruitcount-go/internal/analysis"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Command creates a new command for counting fruit in a directory of images.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory [path]",
		Short: "Count fruit in all image files in a directory",
		Long:  "Provide a directory path to count fruit in all image files within it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The directory to analyze is passed as the first argument
			settings.Input.Path = args[0]
			return analysis.DirectoryAnalysis(settings)
		},
	}

	// Set up flags specific to the 'directory' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags defines flags specific to the directory command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().BoolVarP(&settings.Input.Recursive, "recursive", "r", false, "Recursively process subdirectories")
	cmd.Flags().StringVarP(&settings.Output.File.Path, "output", "o", "", "Path to output directory")
	cmd.Flags().StringVarP(&settings.Output.File.Type, "format", "f", "", "Output format: table, csv, json")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
