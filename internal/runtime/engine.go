package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
)

// Engine owns the canonical editor state.
// Mutations are serialized; listeners run after the mutation completes,
// synchronously and outside the lock, so they may call back into the engine.
type Engine struct {
	mu        sync.Mutex
	parser    ports.Parser
	logger    *slog.Logger
	telemetry ports.Telemetry
	now       func() time.Time

	state   *domain.EditorState
	history *history
	subs    *listeners
	backup  *backupLoop
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHistoryLimit bounds the number of undo snapshots.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		e.history = newHistory(n)
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTelemetry attaches a diagnostics sink.
func WithTelemetry(t ports.Telemetry) Option {
	return func(e *Engine) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// NewEngine creates an engine holding the empty diagram.
func NewEngine(parser ports.Parser, opts ...Option) *Engine {
	e := &Engine{
		parser:    parser,
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		telemetry: ports.NopTelemetry{},
		now:       time.Now,
		state:     domain.NewEditorState(),
		history:   newHistory(DefaultHistoryLimit),
		subs:      newListeners(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.history.add(e.state.Snapshot(e.now()))
	return e
}

// UpdateOptions tunes UpdateFromCode.
type UpdateOptions struct {
	// PreserveComplex keeps the current loop, condition, parallel and group
	// blocks and appends them after the newly parsed simple actions.
	PreserveComplex bool
}

// UpdateResult describes a completed update.
type UpdateResult struct {
	State      *domain.EditorState `json:"state"`
	Diff       *domain.StateDiff   `json:"diff,omitempty"`
	Validation domain.Validation   `json:"validation"`
	// Fallback is set when the parse was degraded and the model was kept.
	Fallback bool `json:"fallback,omitempty"`
}

// UpdateFromCode re-parses text and makes it the source of truth.
// On failure the state is rolled back, the error is logged in ParseErrors and
// an error event is emitted.
func (e *Engine) UpdateFromCode(ctx context.Context, text string, opts UpdateOptions) (*UpdateResult, error) {
	e.mu.Lock()
	res, ev, err := e.updateFromCode(ctx, text, opts)
	e.mu.Unlock()

	e.emit(ev)
	return res, err
}

func (e *Engine) updateFromCode(ctx context.Context, text string, opts UpdateOptions) (*UpdateResult, domain.Event, error) {
	start := e.now()
	e.telemetry.Mark("sync:code:start")
	before := e.state.Snapshot(start)
	prev := e.state.Clone()

	doc, err := e.parser.SafeParse(ctx, text)
	if err != nil {
		return nil, e.rollback(prev, domain.SourceCode, text, err), fmt.Errorf("update from code: %w", err)
	}

	s := e.state
	s.Code = text
	s.IsDirty = false
	synced := e.now()
	s.LastSync = &synced

	if doc.IsFallback {
		e.logger.Warn("keeping previous model after degraded parse", "notice", doc.Lines.Notice)
	} else {
		s.SetActors(doc.Actors)
		if opts.PreserveComplex {
			s.Actions = mergeActions(doc.Actions, prev.Actions)
		} else {
			s.Actions = domain.CloneActions(doc.Actions)
		}
		if s.Actions == nil {
			s.Actions = []domain.Action{}
		}
		if doc.Title != "" {
			s.Title = doc.Title
		}
	}

	// A degraded parse leaves stats and issues of the kept model alone.
	var v domain.Validation
	if doc.IsFallback {
		v = domain.Validation{Valid: true, Errors: []string{}, Warnings: []string{}}
		if doc.Lines.Notice != "" {
			v.Warnings = append(v.Warnings, doc.Lines.Notice)
		}
	} else {
		v = e.parser.Validate(text)
		s.ParseErrors = issues(synced, v.Errors, text)
		s.ParseWarnings = issues(synced, v.Warnings, text)
		if !v.Valid {
			e.logger.Debug("description text has structural errors", "error", v.Err())
		}
	}

	e.telemetry.Mark("sync:code:end")
	if !doc.IsFallback {
		s.Stats = domain.Stats{
			TotalActors:  len(s.Actors),
			TotalActions: len(s.Actions),
			TotalNotes:   len(doc.Lines.Notes),
			ParseTime:    e.now().Sub(start),
		}
	}
	e.telemetry.Measure("sync:code", "sync:code:start", "sync:code:end")

	after := s.Snapshot(synced)
	e.history.add(after)
	diff := domain.Diff(&before, &after)

	e.telemetry.Log("sync", "updated from code", "actors", len(s.Actors), "fallback", doc.IsFallback)
	res := &UpdateResult{
		State:      s.Clone(),
		Diff:       diff,
		Validation: v,
		Fallback:   doc.IsFallback,
	}
	ev := domain.Event{
		Type:      domain.EventUpdate,
		Timestamp: synced,
		Source:    domain.SourceCode,
		Diff:      diff,
		Snapshot:  &after,
	}
	return res, ev, nil
}

// mergeActions keeps the parsed messages followed by the complex blocks of the previous model.
// Other simple actions (dividers, delays, notes) are dropped from both sides.
func mergeActions(parsed, previous []domain.Action) []domain.Action {
	out := make([]domain.Action, 0, len(parsed)+len(previous))
	for _, a := range parsed {
		if a.Kind() == domain.ActionMessage {
			out = append(out, a.Clone())
		}
	}
	for _, a := range previous {
		if a.IsComplex() {
			out = append(out, a.Clone())
		}
	}
	return out
}

func issues(at time.Time, messages []string, code string) []domain.Issue {
	out := make([]domain.Issue, 0, len(messages))
	for _, m := range messages {
		out = append(out, domain.NewIssue(at, m, code))
	}
	return out
}

// rollback restores prev, records cause and builds the error event.
func (e *Engine) rollback(prev *domain.EditorState, source domain.UpdateSource, code string, cause error) domain.Event {
	at := e.now()
	e.state = prev
	e.state.ParseErrors = append(e.state.ParseErrors, domain.NewIssue(at, cause.Error(), code))
	e.logger.Error("update rolled back", "source", source, "error", cause)
	e.telemetry.CaptureError(cause, "source", string(source))
	return domain.Event{
		Type:      domain.EventError,
		Timestamp: at,
		Source:    source,
		Err:       cause,
	}
}

// UpdateFromUI applies structured edits and regenerates the description text.
func (e *Engine) UpdateFromUI(ctx context.Context, changes Changes) (*UpdateResult, error) {
	e.mu.Lock()
	res, ev, err := e.updateFromUI(ctx, changes)
	e.mu.Unlock()

	e.emit(ev)
	return res, err
}

func (e *Engine) updateFromUI(ctx context.Context, changes Changes) (*UpdateResult, domain.Event, error) {
	at := e.now()
	before := e.state.Snapshot(at)
	prev := e.state.Clone()

	if err := ctx.Err(); err != nil {
		return nil, e.rollback(prev, domain.SourceUI, "", err), fmt.Errorf("update from ui: %w", err)
	}
	if err := changes.validate(); err != nil {
		return nil, e.rollback(prev, domain.SourceUI, "", err), fmt.Errorf("update from ui: %w", err)
	}

	s := e.state
	changes.apply(s)

	code := plantuml.Generate(s.Title, s.Actors, s.Actions)
	if code != s.Code {
		s.Code = code
		s.IsDirty = true
		s.LastModified = &at
	}
	s.Stats.TotalActors = len(s.Actors)
	s.Stats.TotalActions = len(s.Actions)

	after := s.Snapshot(at)
	e.history.add(after)
	diff := domain.Diff(&before, &after)

	e.telemetry.Log("sync", "updated from ui", "actors", len(s.Actors))
	res := &UpdateResult{
		State:      s.Clone(),
		Diff:       diff,
		Validation: domain.Validation{Valid: true, Errors: []string{}, Warnings: []string{}},
	}
	ev := domain.Event{
		Type:      domain.EventUpdate,
		Timestamp: at,
		Source:    domain.SourceUI,
		Diff:      diff,
		Snapshot:  &after,
	}
	return res, ev, nil
}

// GeneratePlantUMLCode renders the current model.
func (e *Engine) GeneratePlantUMLCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return plantuml.Generate(e.state.Title, e.state.Actors, e.state.Actions)
}

// Undo steps back in history. It reports false when there is nothing to undo.
func (e *Engine) Undo() bool {
	return e.move(e.history.undo)
}

// Redo steps forward in history. It reports false when there is nothing to redo.
func (e *Engine) Redo() bool {
	return e.move(e.history.redo)
}

func (e *Engine) move(step func() (domain.Snapshot, bool)) bool {
	e.mu.Lock()
	snap, ok := step()
	if ok {
		e.state.Restore(snap)
		e.state.Stats.TotalActors = len(e.state.Actors)
		e.state.Stats.TotalActions = len(e.state.Actions)
	}
	e.mu.Unlock()

	if ok {
		e.emit(domain.Event{Type: domain.EventRestore, Timestamp: e.now(), Snapshot: &snap})
	}
	return ok
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.canUndo()
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.canRedo()
}

// HistoryLen returns the number of recorded snapshots.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history.entries)
}

// State returns a deep copy of the current state.
func (e *Engine) State() *domain.EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// On registers fn for events of type t.
func (e *Engine) On(t domain.EventType, fn Listener) ListenerID {
	return e.subs.on(t, fn)
}

// Off removes a registration. It reports whether one was found.
func (e *Engine) Off(t domain.EventType, id ListenerID) bool {
	return e.subs.off(t, id)
}

func (e *Engine) emit(ev domain.Event) {
	if ev.Type == "" {
		return
	}
	e.subs.emit(ev, e.logger, e.telemetry)
}

// Export serializes the state and the history.
func (e *Engine) Export() *domain.Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &domain.Export{
		Version:   domain.ExportVersion,
		Timestamp: e.now(),
		State:     e.state.Clone(),
		History:   e.history.snapshots(),
	}
}

// Import replaces the state and history with data.
func (e *Engine) Import(data *domain.Export) error {
	if data == nil || data.State == nil {
		return domain.ErrInvalidImport
	}

	e.mu.Lock()
	st := data.State.Clone()
	normalize(st)
	e.state = st
	if len(data.History) > 0 {
		e.history.replace(data.History)
	} else {
		e.history.reset()
		e.history.add(st.Snapshot(e.now()))
	}
	snap := st.Snapshot(e.now())
	e.mu.Unlock()

	e.logger.Info("state imported", "version", data.Version, "history", len(data.History))
	e.emit(domain.Event{Type: domain.EventImport, Timestamp: e.now(), Snapshot: &snap})
	return nil
}

func normalize(s *domain.EditorState) {
	if s.Actors == nil {
		s.Actors = []string{}
	}
	if s.Actions == nil {
		s.Actions = []domain.Action{}
	}
	if s.ParseErrors == nil {
		s.ParseErrors = []domain.Issue{}
	}
	if s.ParseWarnings == nil {
		s.ParseWarnings = []domain.Issue{}
	}
	s.SetActors(s.Actors)
}

// Reset returns to the empty diagram and clears the history.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.state = domain.NewEditorState()
	e.history.reset()
	snap := e.state.Snapshot(e.now())
	e.history.add(snap)
	e.mu.Unlock()

	e.emit(domain.Event{Type: domain.EventReset, Timestamp: e.now(), Snapshot: &snap})
}

// Destroy stops auto-backup and drops all listeners.
func (e *Engine) Destroy() {
	e.StopAutoBackup()
	e.subs.clear()
}
