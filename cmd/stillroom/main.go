package main

import (
	"os"

	"github.com/satindergrewal/stillroom/internal/config"
	"github.com/satindergrewal/stillroom/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "stillroom",
	Short:         "Focus timer with a white, pink and brown noise mixer",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides STILLROOM_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd, renderCmd, countdownCmd)
}

// loadConfig applies defaults, the --config file and STILLROOM_* env vars,
// in that order.
func loadConfig() (config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, logger.New(cfg.LogLevel), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
