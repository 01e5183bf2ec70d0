// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio MCP server with its own in-memory session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates over stdin/stdout and keeps its own session: call
the login tool first. Signing in here does not affect the CLI session.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "forma": {
        "command": "forma",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  login, logout, whoami       Session management
  list_records                Raw records of a table (trainer)
  schedule_session            Book a session (trainer)
  list_schedule               Sessions, optionally upcoming only
  delete_session              Cancel a session (trainer)
  add_progress, list_progress Body measurements
  add_plan, list_plans        Training and nutrition plans
  delete_plan                 Delete a plan (trainer)
  send_message                Message a trainer or client
  get_conversation            Messages with one user
  update_profile              Edit your profile
  export_snapshot             Export all data (trainer)

AVAILABLE RESOURCES:

  forma://schedule/upcoming   Next sessions for the signed-in user
  forma://summary             Dashboard summary`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationMemorySession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(application)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
