package cli

// RunOptions contains the settings shared by the interactive commands.
type RunOptions struct {
	// ConfigPath is an explicit config file. Empty looks for umlsync.{yaml,yml,toml,json}
	// in the working directory.
	ConfigPath string
	LogLevel   string
	Debug      bool
	SafeMode   bool
	// Worker overrides dispatch.worker when set.
	Worker string

	// SessionID persists the editor under this ID. Empty keeps it in memory.
	SessionID string
	// Fresh discards the stored session before opening it.
	Fresh    bool
	Headless bool
	// Style is the glamour style; empty detects the terminal background.
	Style string
	// LibraryDir, if set, is opened as a diagram library for :open.
	LibraryDir string
}
