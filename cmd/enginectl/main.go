// Command enginectl is a thin, out-of-core CLI over pkg/engine: it opens
// an engine rooted at a data directory, runs one operation against a
// primitive facade, and exits. Grounded on cuemby-warren's cmd/warren
// rootCmd/PersistentFlags/cobra.OnInitialize shape, scaled down from an
// orchestrator's many long-running subcommands to a handful of one-shot
// facade operations.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentdb/core/pkg/durability"
	"github.com/agentdb/core/pkg/engine"
)

var (
	dataDir        string
	durabilityFlag string
	logLevel       string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Inspect and operate an agentdb/core data directory",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "engine data directory")
	rootCmd.PersistentFlags().StringVar(&durabilityFlag, "durability", "batched", "durability mode: in_memory, batched, strict")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(kvCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func parseDurability(s string) (durability.Mode, error) {
	switch s {
	case "in_memory":
		return durability.ModeInMemory, nil
	case "batched":
		return durability.ModeBatched, nil
	case "strict":
		return durability.ModeStrict, nil
	default:
		return 0, fmt.Errorf("unknown durability mode %q", s)
	}
}

func openEngine() (*engine.Engine, error) {
	mode, err := parseDurability(durabilityFlag)
	if err != nil {
		return nil, err
	}
	cfg := engine.DefaultConfig(dataDir)
	cfg.Durability = mode
	return engine.Open(cfg, nil)
}
