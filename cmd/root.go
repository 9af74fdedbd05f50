package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/fruitcount-go/cmd/classes"
	"github.com/tphakala/fruitcount-go/cmd/directory"
	"github.com/tphakala/fruitcount-go/cmd/file"
	"github.com/tphakala/fruitcount-go/cmd/report"
	"github.com/tphakala/fruitcount-go/cmd/serve"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fruitcount",
		Short: "FruitCount-Go CLI",
		Long:  "Count fruit in images with a YOLOv8 model, from the command line or as a service.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		file.Command(settings),
		directory.Command(settings),
		serve.Command(settings),
		report.Command(settings),
		classes.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Detector.ModelPath, "model", viper.GetString("detector.modelpath"), "Path to the TFLite model file")
	rootCmd.PersistentFlags().StringVar(&settings.Detector.LabelPath, "labels", viper.GetString("detector.labelpath"), "Path to a label file, embedded COCO labels are used when empty")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detector.Confidence, "confidence", "c", viper.GetFloat64("detector.confidence"), "Confidence threshold for detections, value between 0.1 to 1.0")
	rootCmd.PersistentFlags().StringSliceVar(&settings.Detector.Classes, "classes", viper.GetStringSlice("detector.classes"), "Fruit classes to count")
	rootCmd.PersistentFlags().IntVarP(&settings.Detector.Threads, "threads", "j", viper.GetInt("detector.threads"), "Number of CPU threads, 0 uses all cores")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
