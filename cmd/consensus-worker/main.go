// Package main runs the Temporal worker that executes consensus rounds.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-crowd/internal/config"
	"github.com/ahrav/go-crowd/internal/worker"
)

var version = "dev"

var (
	verbose    bool
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "consensus-worker",
	Short:        "Run the crowd-consensus Temporal worker",
	Version:      version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		return worker.Run(cfg, logger)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
}
