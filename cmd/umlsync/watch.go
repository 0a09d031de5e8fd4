package main

import (
	"os"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-parse a description file on every save and print the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.Style, _ = cmd.Flags().GetString("style")
		opts.Headless = !term.IsTerminal(int(os.Stdout.Fd()))
		return cli.RunWatch(opts, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("style", "", "Glamour style (dark, light, notty)")
}
