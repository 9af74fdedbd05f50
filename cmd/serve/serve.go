package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/fruitcount-go/internal/analysis"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Command creates a new command for running the counting service.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fruit counting service",
		Long:  "Start the HTTP API for image uploads together with the configured result outputs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Serve(settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port for the web server")
	cmd.Flags().StringVar(&settings.Upload.Path, "uploadpath", viper.GetString("upload.path"), "Path to stage uploaded images")
	cmd.Flags().StringVar(&settings.Artifacts.Path, "outputpath", viper.GetString("artifacts.path"), "Path to save annotated images")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish results to the configured MQTT broker")
	cmd.Flags().BoolVar(&settings.Export.Enabled, "export", viper.GetBool("export.enabled"), "Upload annotated images to the configured FTP or SFTP server")
	cmd.Flags().BoolVar(&settings.Observability.Enabled, "metrics", viper.GetBool("observability.enabled"), "Enable Prometheus metrics endpoint")
	cmd.Flags().StringVar(&settings.Observability.Listen, "listen", viper.GetString("observability.listen"), "Listen address and port of metrics endpoint")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
