package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/govis/internal/app"
	"github.com/tejashwikalptaru/govis/internal/config"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "govis",
	Short:         "GoVis renders audio-reactive visuals for a track.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "load configuration from this .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override GOVIS_LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(previewCmd, exportCmd, versionCmd)
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadAppConfig reads the environment and applies the global flags.
func loadAppConfig() (app.Config, error) {
	settings, err := config.Load(envFile)
	if err != nil {
		return app.Config{}, err
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}

	cfg := app.DefaultConfig()
	cfg.Settings = settings
	return cfg, nil
}
