package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/logging"
	"github.com/stashd/stash/internal/metrics"
)

var (
	cfgPath      string
	snapshotDir  string
	snapshotFile string
	outputFormat string
	logLevel     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stash",
		Short: "Stash - durable process-local resource cache",
		Long:  "Inspect and maintain stash cache snapshot files",
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&snapshotDir, "snapshot-dir", "", "Snapshot directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&snapshotFile, "snapshot-file", "", "Snapshot file name (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		inspectCmd(),
		pruneCmd(),
		pathCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, config file, environment and flags, in
// that order, then wires the logger and metrics.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if snapshotDir != "" {
		cfg.Snapshot.Dir = snapshotDir
	}
	if snapshotFile != "" {
		cfg.Snapshot.File = snapshotFile
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)
	metrics.Init(cfg.Metrics.Namespace)
	return cfg, nil
}
