package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/cli"
	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted editor sessions",
	Long:  `List, inspect, and remove sessions in the configured backup store (file store by default).`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openSessionStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No stored sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Stored Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the exported state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openSessionStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		export, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading session '%s': %w", args[0], err)
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openSessionStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		failed := 0
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d sessions could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
}

// openSessionStore opens the configured store. A memory store would be empty, so it becomes the file store.
func openSessionStore(cmd *cobra.Command) (ports.SnapshotStore, func() error, error) {
	cfg, err := cli.LoadConfig(runOptions(cmd))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Backup.Store == "" || cfg.Backup.Store == config.StoreMemory {
		cfg.Backup.Store = config.StoreFile
	}
	return umlsync.OpenStore(cfg.Backup)
}
