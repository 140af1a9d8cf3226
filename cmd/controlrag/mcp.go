package main

import (
	"log/slog"
	"os"

	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/mcpserver"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the control tools over MCP",
	Long: `Starts a Model Context Protocol server on stdio with the tools
query_controls and check_health.

Client configuration:
  {
    "mcpServers": {
      "controlrag": {
        "command": "/path/to/controlrag",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, appOptions{embedder: true, generator: true}, func(a app) error {
		// stdout carries the protocol
		level, err := cfg.Log.SlogLevel()
		if err != nil {
			level = slog.LevelInfo
		}
		server, err := mcpserver.NewServer(a, helper.NewLogger(os.Stderr, level))
		if err != nil {
			return err
		}
		return server.Run(cmd.Context())
	})
}
