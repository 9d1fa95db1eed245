package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hupe1980/kiln"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Load engine assets and report resource lifecycle statistics",
	Long: `kiln opens a resource core from a TOML configuration, drives assets
through the loading state machine and prints memory, registry and tracker
statistics.

Without --config the path in KILN_CONFIG is used, and without either the
built-in defaults apply.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to kiln.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfig loads the file named by --config or KILN_CONFIG, falling
// back to kiln.DefaultConfig.
func resolveConfig(path string) (*kiln.Config, error) {
	if path == "" {
		path = os.Getenv("KILN_CONFIG")
	}
	if path == "" {
		return kiln.DefaultConfig(), nil
	}
	cfg, err := kiln.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg kiln.LoggingConfig, debug bool) (*zap.Logger, error) {
	if debug {
		cfg.Level = zapcore.DebugLevel.String()
	}
	l, err := kiln.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return l, nil
}
