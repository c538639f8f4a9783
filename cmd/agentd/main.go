// Package main provides the CLI entry point for agentd, a single-agent
// conversational loop: one LLM provider, a local tool registry, and a
// session store, wired with the resilience, intent-routing, compaction and
// crash-recovery layers the agent loop exposes as extension points.
//
// # Basic Usage
//
// Start an interactive session on stdin/stdout:
//
//	agentd serve --config agentd.yaml
//
// Check what the loaded configuration would wire up:
//
//	agentd status --config agentd.yaml
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentd",
		Short: "agentd - a single-agent conversational loop",
		Long: `agentd runs one LLM-backed agent loop over stdin/stdout, with tool
execution, session persistence, provider key rotation and model fallback,
intent-based system prompt routing, and context compaction.`,
		Version: version,
	}
	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildStatusCmd())
	return rootCmd
}
