package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/umlsync/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "umlsync",
	Short: "umlsync keeps sequence diagram text and its structured model in sync",
	Long: `umlsync parses PlantUML-like sequence diagram text into a structured model,
regenerates text from model edits, and keeps both sides consistent with undo/redo,
a bounded parse worker and optional session persistence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: umlsync.{yaml,toml,json} in the working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs and diagnostics")
	rootCmd.PersistentFlags().Bool("safe-mode", false, "Parse with the capped scan only, bypassing worker and cache")
	rootCmd.PersistentFlags().String("worker", "", "Parse worker: goroutine, process or none")
}

// runOptions reads the persistent flags.
func runOptions(cmd *cobra.Command) cli.RunOptions {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	logLevel, _ := flags.GetString("log-level")
	debug, _ := flags.GetBool("debug")
	safeMode, _ := flags.GetBool("safe-mode")
	worker, _ := flags.GetString("worker")
	return cli.RunOptions{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Debug:      debug,
		SafeMode:   safeMode,
		Worker:     worker,
	}
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
