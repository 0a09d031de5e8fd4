package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/aretw0/umlsync/pkg/adapters/loam"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage a directory of stored diagrams",
}

func openLibrary(cmd *cobra.Command) (*loam.Library, error) {
	dir, _ := cmd.Flags().GetString("dir")
	return loam.Open(dir)
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored diagram IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		ids, err := lib.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored diagram, optionally parsed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, _ := cmd.Flags().GetBool("parse")
		lib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		d, err := lib.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !parsed {
			fmt.Fprintln(cmd.OutOrStdout(), d.Code)
			return nil
		}

		ed, _, _, err := cli.NewEditor(runOptions(cmd))
		if err != nil {
			return err
		}
		defer ed.Close()
		res, err := ed.Parse(cmd.Context(), d.Code)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <id> [file]",
	Short: "Store a description file (or stdin) under an ID",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		name := "-"
		if len(args) > 1 {
			name = args[1]
		}
		code, err := readInput(cmd, name)
		if err != nil {
			return err
		}

		ed, _, _, err := cli.NewEditor(runOptions(cmd))
		if err != nil {
			return err
		}
		defer ed.Close()
		if v := ed.Validate(code); !v.Valid {
			return fmt.Errorf("refusing to store invalid diagram: %s", strings.Join(v.Errors, "; "))
		}

		lib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		if err := lib.Save(cmd.Context(), ports.Diagram{ID: args[0], Title: title, Tags: tags, Code: code}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
		return nil
	},
}

var libraryWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print diagram IDs as they change on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		changes, err := lib.Watch(ctx)
		if err != nil {
			return err
		}
		for id := range changes {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.PersistentFlags().String("dir", ".", "Library directory")
	libraryCmd.AddCommand(libraryListCmd, libraryShowCmd, librarySaveCmd, libraryWatchCmd)

	libraryShowCmd.Flags().Bool("parse", false, "Print the parse result instead of the text")
	librarySaveCmd.Flags().String("title", "", "Diagram title")
	librarySaveCmd.Flags().StringSlice("tag", nil, "Tags (repeatable)")
}
