package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "agentd.yaml"

// buildServeCmd creates the "serve" command that runs the agent loop as an
// interactive stdin/stdout session.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent loop as an interactive session",
		Long: `Run the agent loop reading turns from stdin and writing replies to stdout.

serve will:
1. Load configuration from the specified file (or agentd.yaml)
2. Build the configured LLM provider, wrapped with key rotation and model
   fallback
3. Register the local tool set (files, exec, weather, jobs, sessions, system)
4. Resolve a persistent session for the process and run turns through it

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  agentd serve

  # Start with a custom config and agent id
  agentd serve --config /etc/agentd/production.yaml --agent-id ops`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, agentID, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVarP(&agentID, "agent-id", "a", "main", "Agent identity used for session scoping")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

// buildStatusCmd reports what the configuration would wire up without
// starting the interactive loop.
func buildStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the resolved configuration and provider wiring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}
