// Package config holds the explicit configuration passed to the dispatcher,
// the synchronization engine and the outer adapters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Worker kinds.
const (
	WorkerGoroutine = "goroutine"
	WorkerProcess   = "process"
	WorkerNone      = "none"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the root configuration document.
type Config struct {
	// SafeMode switches the dispatcher to the capped parse and bypasses cache and worker.
	SafeMode bool `yaml:"safe_mode" toml:"safe_mode" json:"safe_mode" mapstructure:"safe_mode"`
	// Diagnostic enables the in-memory diagnostic recorder.
	Diagnostic bool `yaml:"diagnostic" toml:"diagnostic" json:"diagnostic" mapstructure:"diagnostic"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level" mapstructure:"log_level"`

	Dispatch Dispatch `yaml:"dispatch" toml:"dispatch" json:"dispatch" mapstructure:"dispatch"`
	History  History  `yaml:"history" toml:"history" json:"history" mapstructure:"history"`
	Backup   Backup   `yaml:"backup" toml:"backup" json:"backup" mapstructure:"backup"`
	HTTP     HTTP     `yaml:"http" toml:"http" json:"http" mapstructure:"http"`
}

// Dispatch configures the parse dispatcher and its worker.
type Dispatch struct {
	SafeMode bool `yaml:"-" toml:"-" json:"-" mapstructure:"-"`

	// Worker selects the isolated context: goroutine, process or none.
	Worker string `yaml:"worker" toml:"worker" json:"worker" mapstructure:"worker"`
	// WorkerCommand is the executable used by the process worker.
	WorkerCommand []string `yaml:"worker_command" toml:"worker_command" json:"worker_command" mapstructure:"worker_command"`

	Timeout     time.Duration `yaml:"timeout" toml:"timeout" json:"timeout" mapstructure:"timeout"`
	ReinitDelay time.Duration `yaml:"reinit_delay" toml:"reinit_delay" json:"reinit_delay" mapstructure:"reinit_delay"`

	CacheSize int `yaml:"cache_size" toml:"cache_size" json:"cache_size" mapstructure:"cache_size"`

	// ChunkLines is the number of lines parsed between yields on the cooperative tier.
	ChunkLines int `yaml:"chunk_lines" toml:"chunk_lines" json:"chunk_lines" mapstructure:"chunk_lines"`
	// IdleBudget, when positive, bounds the time spent per cooperative chunk.
	IdleBudget time.Duration `yaml:"idle_budget" toml:"idle_budget" json:"idle_budget" mapstructure:"idle_budget"`

	// FallbackLines is the number of lines read by the degraded actor scan.
	FallbackLines int `yaml:"fallback_lines" toml:"fallback_lines" json:"fallback_lines" mapstructure:"fallback_lines"`

	// BatchConcurrency bounds BatchParse.
	BatchConcurrency int `yaml:"batch_concurrency" toml:"batch_concurrency" json:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// History configures undo/redo.
type History struct {
	Limit int `yaml:"limit" toml:"limit" json:"limit" mapstructure:"limit"`
}

// Backup configures periodic snapshot backup.
type Backup struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled" json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" toml:"interval" json:"interval" mapstructure:"interval"`
	Store    string        `yaml:"store" toml:"store" json:"store" mapstructure:"store"`
	Dir      string        `yaml:"dir" toml:"dir" json:"dir" mapstructure:"dir"`

	RedisAddr string        `yaml:"redis_addr" toml:"redis_addr" json:"redis_addr" mapstructure:"redis_addr"`
	Prefix    string        `yaml:"prefix" toml:"prefix" json:"prefix" mapstructure:"prefix"`
	TTL       time.Duration `yaml:"ttl" toml:"ttl" json:"ttl" mapstructure:"ttl"`

	// EncryptionKey is a 32-byte AES key, hex encoded. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key" json:"encryption_key" mapstructure:"encryption_key"`
	// Redact lists regular expressions masked in persisted text.
	Redact []string `yaml:"redact" toml:"redact" json:"redact" mapstructure:"redact"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr" mapstructure:"addr"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Dispatch: DefaultDispatch(),
		History:  History{Limit: 50},
		Backup: Backup{
			Interval: time.Minute,
			Store:    StoreMemory,
			Dir:      ".umlsync/sessions",
			Prefix:   "umlsync:session:",
		},
		HTTP: HTTP{Addr: ":8080"},
	}
}

// DefaultDispatch returns the dispatcher defaults.
func DefaultDispatch() Dispatch {
	return Dispatch{
		Worker:           WorkerGoroutine,
		Timeout:          3 * time.Second,
		ReinitDelay:      time.Second,
		CacheSize:        100,
		ChunkLines:       10,
		FallbackLines:    50,
		BatchConcurrency: 4,
	}
}

// DispatchConfig returns the dispatcher section with the root safe mode applied.
func (c Config) DispatchConfig() Dispatch {
	d := c.Dispatch
	d.SafeMode = c.SafeMode
	return d
}

// Load reads a YAML, TOML or JSON file over the defaults. The format is
// chosen by extension; unknown extensions are read as YAML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	return cfg.normalized(), nil
}

// normalized replaces zero values that would disable a component by accident.
func (c Config) normalized() Config {
	def := Default()
	if c.Dispatch.Timeout <= 0 {
		c.Dispatch.Timeout = def.Dispatch.Timeout
	}
	if c.Dispatch.ReinitDelay <= 0 {
		c.Dispatch.ReinitDelay = def.Dispatch.ReinitDelay
	}
	if c.Dispatch.CacheSize <= 0 {
		c.Dispatch.CacheSize = def.Dispatch.CacheSize
	}
	if c.Dispatch.ChunkLines <= 0 {
		c.Dispatch.ChunkLines = def.Dispatch.ChunkLines
	}
	if c.Dispatch.FallbackLines <= 0 {
		c.Dispatch.FallbackLines = def.Dispatch.FallbackLines
	}
	if c.Dispatch.BatchConcurrency <= 0 {
		c.Dispatch.BatchConcurrency = def.Dispatch.BatchConcurrency
	}
	if c.Dispatch.Worker == "" {
		c.Dispatch.Worker = def.Dispatch.Worker
	}
	if c.History.Limit <= 0 {
		c.History.Limit = def.History.Limit
	}
	if c.Backup.Interval <= 0 {
		c.Backup.Interval = def.Backup.Interval
	}
	return c
}
