package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/presentation/tui"
	"github.com/aretw0/umlsync/pkg/adapters/loam"
	"github.com/aretw0/umlsync/pkg/domain"
)

// RunSession runs the interactive editor on in and out until :quit, end of
// input or a signal. A named session is loaded first and saved on exit.
func RunSession(opts RunOptions, in io.Reader, out io.Writer) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.LogLevel)

	if !opts.Headless {
		tui.PrintBanner(out, umlsync.Version)
	}

	var extra []umlsync.Option
	if opts.LibraryDir != "" {
		lib, err := loam.Open(opts.LibraryDir)
		if err != nil {
			return fmt.Errorf("failed to open library: %w", err)
		}
		extra = append(extra, umlsync.WithLibrary(lib))
	}

	ed, err := createEditor(cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer ed.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if opts.SessionID != "" {
		if opts.Fresh {
			if err := ed.Sessions().Delete(sigCtx, opts.SessionID); err != nil && !isNotFound(err) {
				return fmt.Errorf("failed to reset session: %w", err)
			}
		}
		if err := ed.Open(sigCtx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		logger.Info("Session opened", "session_id", opts.SessionID)
		if !opts.Headless {
			printSystemMessage(out, "Session '%s' active (%d actors).", opts.SessionID, len(ed.State().Actors))
		}
	}

	r := umlsync.NewRunner()
	r.Input = in
	r.Output = out
	r.Headless = opts.Headless
	if !opts.Headless {
		if render, err := tui.NewRenderer(opts.Style); err == nil {
			r.Renderer = func(s string) (string, error) { return render(tui.CodeBlock(s)) }
		} else {
			logger.Warn("renderer unavailable", "error", err)
		}
	}

	runErr := r.Run(sigCtx, ed)

	if opts.SessionID != "" {
		if err := ed.Save(context.Background(), opts.SessionID); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		if !opts.Headless {
			printSystemMessage(out, "Session '%s' saved.", opts.SessionID)
		}
	}
	return handleExecutionError(runErr)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSnapshotNotFound)
}
