package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/umlsync"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of umlsync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "umlsync version %s\n", strings.TrimSpace(umlsync.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
