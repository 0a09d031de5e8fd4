package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/presentation/tui"
	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// UpdateFunc receives the outcome of each re-parse.
type UpdateFunc func(res *runtime.UpdateResult, err error)

// WatchFile parses path into ed, then re-parses it after every change until
// ctx is done. Complex blocks of the previous model are kept when a change
// drops them, so hand-edited loops survive a partial save.
func WatchFile(ctx context.Context, ed *umlsync.Editor, path string, debounce time.Duration, logger *slog.Logger, onUpdate UpdateFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	reload := func(opts runtime.UpdateOptions) {
		data, err := os.ReadFile(absPath)
		if err != nil {
			onUpdate(nil, err)
			return
		}
		onUpdate(ed.UpdateFromCode(ctx, string(data), opts))
	}
	reload(runtime.UpdateOptions{})

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != absPath || !evt.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("change detected", "path", evt.Name, "op", evt.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			reload(runtime.UpdateOptions{PreserveComplex: true})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// RunWatch prints a summary of path on every change until interrupted.
func RunWatch(opts RunOptions, path string, out io.Writer) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.LogLevel)
	if !opts.Headless {
		tui.PrintBanner(out, umlsync.Version)
	}

	ed, err := createEditor(cfg, logger)
	if err != nil {
		return err
	}
	defer ed.Close()

	render := func(s string) (string, error) { return s, nil }
	if !opts.Headless {
		if r, err := tui.NewRenderer(opts.Style); err == nil {
			render = r
		}
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	printSystemMessage(out, "Watching '%s'.", path)
	err = WatchFile(sigCtx, ed, path, DefaultDebounce, logger, func(res *runtime.UpdateResult, err error) {
		if err != nil {
			printSystemMessage(out, "Error: %v", err)
			return
		}
		md := tui.Summary(res.State)
		if res.Fallback {
			md += "> degraded parse, previous model kept\n"
		}
		text, rerr := render(md)
		if rerr != nil {
			text = md
		}
		fmt.Fprint(out, text)
	})
	if sig := sigCtx.Signal(); sig != nil {
		printSystemMessage(out, "Stopped (%v).", sig)
	}
	return handleExecutionError(err)
}
