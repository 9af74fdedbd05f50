package main

import (
	"log"
	"os"

	"github.com/tphakala/fruitcount-go/cmd"
	"github.com/tphakala/fruitcount-go/internal/conf"
)

// version and buildDate are set by the build through ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// Load the configuration, a default file is created on first run.
	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}

	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
