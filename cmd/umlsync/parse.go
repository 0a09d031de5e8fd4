package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Print the line-level parse result as JSON",
	Long: `Parses one or more description files through the dispatcher and prints the
line-level result (actors, messages, notes, groups) as JSON. With no file, stdin is read.
Several files are parsed concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		structuredOut, _ := cmd.Flags().GetBool("structured")

		ed, _, _, err := cli.NewEditor(runOptions(cmd))
		if err != nil {
			return err
		}
		defer ed.Close()

		if len(args) == 0 {
			args = []string{"-"}
		}
		texts := make([]string, len(args))
		for i, name := range args {
			if texts[i], err = readInput(cmd, name); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if structuredOut {
			for i, text := range texts {
				doc, err := ed.Parser().SafeParse(cmd.Context(), text)
				if err != nil {
					return fmt.Errorf("%s: %w", args[i], err)
				}
				if err := enc.Encode(doc); err != nil {
					return err
				}
			}
			return nil
		}

		var results []domain.ParseResult
		if len(texts) == 1 {
			res, err := ed.Parse(cmd.Context(), texts[0])
			if err != nil {
				return err
			}
			results = []domain.ParseResult{res}
		} else {
			results, err = ed.Dispatcher().BatchParse(cmd.Context(), texts, func(done, total int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\rparsed %d/%d", done, total)
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("structured", false, "Print the nested action tree instead of the line result")
}
