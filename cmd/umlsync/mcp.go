package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/aretw0/umlsync/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as a Model Context Protocol server",
	Long: `Exposes parse, validate, generate, update and undo/redo tools over MCP.
The default transport is stdio; --transport sse serves HTTP on --port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		opts := runOptions(cmd)
		if opts.LogLevel == "" && !opts.Debug {
			// stdout belongs to the protocol
			opts.LogLevel = "error"
		}
		ed, _, logger, err := cli.NewEditor(opts)
		if err != nil {
			return err
		}
		defer ed.Close()

		s := mcp.NewServer(ed.Dispatcher(), ed.Parser(), ed.Engine(), logger)

		if transport == "sse" {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.ServeSSE(ctx, port)
		}
		return s.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().Int("port", 8081, "Port for the sse transport")
}
