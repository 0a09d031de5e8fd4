package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/pkg/config"
)

var configCandidates = []string{"umlsync.yaml", "umlsync.yml", "umlsync.toml", "umlsync.json"}

// LoadConfig reads the configuration and applies the command line overrides.
func LoadConfig(opts RunOptions) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = findConfig(".")
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
		cfg.Diagnostic = true
	}
	if opts.SafeMode {
		cfg.SafeMode = true
	}
	if opts.Worker != "" {
		cfg.Dispatch.Worker = opts.Worker
	}
	if opts.SessionID != "" && !cfg.Backup.Enabled {
		// Sessions named on the command line survive the process.
		cfg.Backup.Enabled = true
		if cfg.Backup.Store == config.StoreMemory {
			cfg.Backup.Store = config.StoreFile
		}
	}
	return cfg, nil
}

// findConfig returns the first conventional config file in dir, or "".
func findConfig(dir string) string {
	for _, name := range configCandidates {
		path := dir + string(os.PathSeparator) + name
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// createEditor initializes an editor with standard CLI conventions.
func createEditor(cfg config.Config, logger *slog.Logger, extra ...umlsync.Option) (*umlsync.Editor, error) {
	opts := append([]umlsync.Option{
		umlsync.WithConfig(cfg),
		umlsync.WithLogger(logger),
	}, extra...)

	ed, err := umlsync.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing editor: %w", err)
	}
	return ed, nil
}

// NewEditor loads the configuration and builds an editor, for one-shot commands.
func NewEditor(opts RunOptions, extra ...umlsync.Option) (*umlsync.Editor, config.Config, *slog.Logger, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger := createLogger(cfg.LogLevel)
	ed, err := createEditor(cfg, logger, extra...)
	return ed, cfg, logger, err
}
