package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyagen/confsync/internal/config"
	"github.com/voyagen/confsync/internal/logging"
)

var configPath string

var rootCommand = &cobra.Command{
	Use:           "confsync",
	Short:         "Conference and podcast sync backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	rootCommand.AddCommand(serveCommand(), migrateCommand(), importCommand())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		logging.Error().Err(err).Msg("confsync failed")
		os.Exit(1)
	}
}

// setup loads and validates config and installs the logger. The returned
// function closes the log file.
func setup(requireDatabase bool) (*config.Config, func(), error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(requireDatabase); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	closeLog, err := logging.Init(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, func() { _ = closeLog() }, nil
}
