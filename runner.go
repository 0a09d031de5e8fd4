package umlsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/umlsync/internal/runtime"
)

// Runner drives an Editor from a line-oriented input, such as a terminal.
// Plain lines are collected into a draft; commands start with a colon.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms text before it is printed, for example to add
// terminal styling, without coupling the core package to a TUI library.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

const runnerHelp = `Lines are added to the draft. Commands:
  :apply            parse the draft and make it the diagram
  :clear            discard the draft
  :load <path>      parse a file
  :open <id>        open a diagram from the library
  :title <text>     set the title
  :select a,b       set the selected actors
  :undo / :redo     move through the history
  :show             print the description text
  :mermaid          print the Mermaid rendering
  :stats            print dispatcher and model statistics
  :reset            start over from an empty diagram
  :quit             leave`

// Run reads commands until :quit or end of input.
func (r *Runner) Run(ctx context.Context, ed *Editor) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewScanner(r.Input)
	var draft []string

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- umlsync editor (:help for commands) ---")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		}
		line, err := SanitizeLine(lines.Text())
		if err != nil {
			fmt.Fprintf(r.Output, "error: %v\n", err)
			continue
		}

		if !strings.HasPrefix(line, ":") {
			draft = append(draft, line)
			continue
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line[1:]), " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "quit", "exit", "q":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		case "help":
			fmt.Fprintln(r.Output, runnerHelp)
		case "apply":
			r.apply(ctx, ed, strings.Join(draft, "\n"))
			draft = nil
		case "clear":
			draft = nil
		case "load":
			data, err := os.ReadFile(arg)
			if err != nil {
				fmt.Fprintf(r.Output, "error: %v\n", err)
				continue
			}
			r.apply(ctx, ed, string(data))
		case "open":
			res, err := ed.OpenDiagram(ctx, arg)
			if err != nil {
				fmt.Fprintf(r.Output, "error: %v\n", err)
				continue
			}
			r.summarize(res)
		case "title":
			r.change(ctx, ed, runtime.Changes{Title: &arg})
		case "select":
			var selected []string
			for _, name := range strings.Split(arg, ",") {
				if name = strings.TrimSpace(name); name != "" {
					selected = append(selected, name)
				}
			}
			r.change(ctx, ed, runtime.Changes{SelectedActors: &selected})
		case "undo":
			r.report(ed.Undo(), "undone", "nothing to undo")
		case "redo":
			r.report(ed.Redo(), "redone", "nothing to redo")
		case "show":
			r.print(ed.Code())
		case "mermaid":
			r.print(ed.Mermaid())
		case "stats":
			st := ed.State()
			ds := ed.Dispatcher().Stats()
			fmt.Fprintf(r.Output, "actors: %d, actions: %d, history: %d\n", st.Stats.TotalActors, st.Stats.TotalActions, ed.Engine().HistoryLen())
			fmt.Fprintf(r.Output, "worker: %s, cache: %d, pending: %d\n", ds.WorkerState, ds.CacheSize, ds.PendingRequests)
		case "reset":
			ed.Reset()
			fmt.Fprintln(r.Output, "reset")
		default:
			fmt.Fprintf(r.Output, "unknown command %q\n", cmd)
		}
	}
}

func (r *Runner) apply(ctx context.Context, ed *Editor, text string) {
	res, err := ed.UpdateFromCode(ctx, text, runtime.UpdateOptions{})
	if err != nil {
		fmt.Fprintf(r.Output, "error: %v\n", err)
		return
	}
	r.summarize(res)
}

func (r *Runner) summarize(res *runtime.UpdateResult) {
	fmt.Fprintf(r.Output, "actors: %s\n", strings.Join(res.State.Actors, ", "))
	for _, e := range res.Validation.Errors {
		fmt.Fprintf(r.Output, "error: %s\n", e)
	}
	for _, w := range res.Validation.Warnings {
		fmt.Fprintf(r.Output, "warning: %s\n", w)
	}
	if res.Fallback {
		fmt.Fprintln(r.Output, "warning: degraded parse, model kept")
	}
}

func (r *Runner) change(ctx context.Context, ed *Editor, c runtime.Changes) {
	if _, err := ed.UpdateFromUI(ctx, c); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(r.Output, "error: %v\n", err)
		return
	}
	r.print(ed.Code())
}

func (r *Runner) report(ok bool, yes, no string) {
	if ok {
		fmt.Fprintln(r.Output, yes)
		return
	}
	fmt.Fprintln(r.Output, no)
}

func (r *Runner) print(text string) {
	if r.Renderer != nil {
		if rendered, err := r.Renderer(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimRight(text, "\n"))
}
