// Package cli wires the shield commands: serve, analyze, blacklist,
// simulate, audit, version.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "shield",
	Short: "Transaction-intent firewall for autonomous agents",
	Long: "Analyzes transaction intents from AI agents before execution.\n" +
		"Three layers: heuristic rules, untrusted-source detection, and LLM\n" +
		"semantic analysis, fused into an allow/block verdict with a risk score.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (default ~/.shield/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for command output and the MCP transport.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
