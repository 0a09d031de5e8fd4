package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/umlsync/pkg/dispatch"
	"github.com/spf13/cobra"
)

// workerCmd is the child side of the process worker.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve parse requests on stdin/stdout (used by the process worker)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return dispatch.ServeWorker(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
