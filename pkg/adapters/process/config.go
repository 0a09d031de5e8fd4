package process

import (
	"errors"
	"os"
	"strings"
	"time"
)

// DefaultGracePeriod is how long Terminate waits for the worker to exit after
// its input is closed before killing it.
const DefaultGracePeriod = 2 * time.Second

// ErrNoCommand is returned when no worker executable is configured.
var ErrNoCommand = errors.New("process worker requires a command")

// Config describes the worker executable.
type Config struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env" json:"env"`
	Dir     string            `yaml:"dir" json:"dir"`
	// GracePeriod overrides DefaultGracePeriod.
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`
}

// ConfigFromArgv builds a Config from a command line split into words, as
// found in the dispatch worker_command setting. An empty argv runs the current
// executable with the "worker" subcommand.
func ConfigFromArgv(argv []string) (Config, error) {
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return Config{}, err
		}
		return Config{Command: exe, Args: []string{"worker"}}, nil
	}
	if strings.TrimSpace(argv[0]) == "" {
		return Config{}, ErrNoCommand
	}
	return Config{Command: argv[0], Args: append([]string(nil), argv[1:]...)}, nil
}

func (c Config) environ(base []string) []string {
	env := append([]string(nil), base...)
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func (c Config) grace() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return DefaultGracePeriod
}
