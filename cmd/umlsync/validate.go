package main

import (
	"fmt"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check description files for structural errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")

		ed, _, _, err := cli.NewEditor(runOptions(cmd))
		if err != nil {
			return err
		}
		defer ed.Close()

		if len(args) == 0 {
			args = []string{"-"}
		}
		failed := 0
		out := cmd.OutOrStdout()
		for _, name := range args {
			text, err := readInput(cmd, name)
			if err != nil {
				return err
			}
			v := ed.Validate(text)
			for _, e := range v.Errors {
				fmt.Fprintf(out, "%s: error: %s\n", name, e)
			}
			for _, w := range v.Warnings {
				fmt.Fprintf(out, "%s: warning: %s\n", name, w)
			}
			if !v.Valid || (strict && len(v.Warnings) > 0) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		fmt.Fprintln(out, "✅ valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as failures")
}
