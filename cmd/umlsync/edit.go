package main

import (
	"os"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Start an interactive editing session",
	Long: `Reads description lines and :commands from stdin. Type :help for the command list.
With --session the editor state is restored on start, backed up while editing and
saved on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.Style, _ = cmd.Flags().GetString("style")
		opts.LibraryDir, _ = cmd.Flags().GetString("library")
		headless, _ := cmd.Flags().GetBool("headless")
		opts.Headless = headless || !term.IsTerminal(int(os.Stdin.Fd()))
		return cli.RunSession(opts, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringP("session", "s", "", "Session ID to restore and persist")
	editCmd.Flags().Bool("fresh", false, "Discard the stored session before starting")
	editCmd.Flags().Bool("headless", false, "Plain output without banner or styling")
	editCmd.Flags().String("style", "", "Glamour style (dark, light, notty)")
	editCmd.Flags().String("library", "", "Diagram library directory for :open")
}
