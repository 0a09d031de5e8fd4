package process

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/aretw0/umlsync/internal/logging"
	"github.com/aretw0/umlsync/pkg/dispatch"
)

// Option configures the worker factory.
type Option func(*factory)

// WithLogger receives the worker's stderr, one record per line.
func WithLogger(l *slog.Logger) Option {
	return func(f *factory) {
		if l != nil {
			f.logger = l
		}
	}
}

type factory struct {
	cfg    Config
	logger *slog.Logger
}

// NewFactory returns a dispatch.ContextFactory that starts cfg as a child
// process speaking the worker protocol on its stdin and stdout.
func NewFactory(cfg Config, opts ...Option) dispatch.ContextFactory {
	f := &factory{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "process-worker")
	return f.start
}

func (f *factory) start() (dispatch.WorkerContext, error) {
	if f.cfg.Command == "" {
		return nil, ErrNoCommand
	}

	cmd := exec.Command(f.cfg.Command, f.cfg.Args...)
	cmd.Dir = f.cfg.Dir
	cmd.Env = f.cfg.environ(cmd.Environ())

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", f.cfg.Command, err)
	}
	pid := cmd.Process.Pid
	f.logger.Debug("worker started", "pid", pid)
	go f.drain(stderr, pid)

	grace := f.cfg.grace()
	return dispatch.NewStreamContext(stdin, stdout, func() error {
		return stop(cmd, grace, f.logger)
	}), nil
}

// stop waits for the worker to exit on its own after stdin was closed and
// kills it once grace has elapsed.
func stop(cmd *exec.Cmd, grace time.Duration, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Debug("worker exited", "pid", cmd.Process.Pid, "err", err)
		}
		return nil
	case <-time.After(grace):
		logger.Warn("worker did not exit, killing", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill worker: %w", err)
		}
		<-done
		return nil
	}
}

func (f *factory) drain(r io.Reader, pid int) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		f.logger.Info("worker stderr", "pid", pid, "line", scanner.Text())
	}
}
