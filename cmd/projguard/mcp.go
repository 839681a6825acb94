// MCP serve command for tool-invocation gateways.
package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projguard/internal/mcp"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve projguard tools over MCP on stdio",
	Long: `Serve exposes project_detect, project_validate, project_guard,
project_switch, and project_list as MCP tools on the stdio transport,
so a tool-invocation gateway can validate project identity before
dispatching project-scoped tool calls.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		server, err := mcp.NewServer(
			&mcp.Config{Name: "projguard", Version: version, Logger: a.logger},
			a.store, a.detector, a.cfg.Validate, a.gate, a.flow, a.log,
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx)
	},
}
