package umlsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/umlsync/internal/presentation/graph"
	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/pkg/adapters/process"
	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/dispatch"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/observability"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/aretw0/umlsync/pkg/session"
	"github.com/aretw0/umlsync/pkg/structured"
)

// Editor is the high-level entry point. It wires the dispatcher, the
// structured parser and the synchronization engine for one diagram.
type Editor struct {
	cfg        config.Config
	logger     *slog.Logger
	factory    dispatch.ContextFactory
	metrics    *observability.Metrics
	telemetry  ports.Telemetry
	store      ports.SnapshotStore
	closeStore func() error
	dispatcher *dispatch.Dispatcher
	parser     *structured.Parser
	engine     *runtime.Engine
	sessions   *session.Manager
	library    ports.DiagramLibrary
}

// Option configures an Editor.
type Option func(*Editor)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(e *Editor) {
		e.cfg = cfg
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithWorkerFactory injects the worker context factory, overriding dispatch.worker.
func WithWorkerFactory(f dispatch.ContextFactory) Option {
	return func(e *Editor) {
		e.factory = f
	}
}

// WithMetrics records dispatcher metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithTelemetry routes dispatcher and engine diagnostics to t.
func WithTelemetry(t ports.Telemetry) Option {
	return func(e *Editor) {
		e.telemetry = t
	}
}

// WithStore sets the snapshot store used by sessions and auto-backup.
// Without it the store is opened from the backup configuration when backup is enabled.
func WithStore(s ports.SnapshotStore) Option {
	return func(e *Editor) {
		e.store = s
	}
}

// WithLibrary attaches a diagram library for opening stored diagrams by ID.
func WithLibrary(l ports.DiagramLibrary) Option {
	return func(e *Editor) {
		e.library = l
	}
}

// New builds an Editor.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{cfg: config.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if e.telemetry == nil {
		if e.cfg.Diagnostic {
			e.telemetry = observability.NewRecorder(e.logger, 0)
		} else {
			e.telemetry = ports.NopTelemetry{}
		}
	}

	if e.factory == nil && e.cfg.Dispatch.Worker == config.WorkerProcess {
		pc, err := process.ConfigFromArgv(e.cfg.Dispatch.WorkerCommand)
		if err != nil {
			return nil, fmt.Errorf("invalid worker command: %w", err)
		}
		e.factory = process.NewFactory(pc, process.WithLogger(e.logger))
	}

	dopts := []dispatch.Option{
		dispatch.WithLogger(e.logger),
		dispatch.WithMetrics(e.metrics),
		dispatch.WithTelemetry(e.telemetry),
	}
	if e.factory != nil {
		dopts = append(dopts, dispatch.WithWorkerFactory(e.factory))
	}
	e.dispatcher = dispatch.New(e.cfg.DispatchConfig(), dopts...)

	e.parser = structured.New(
		structured.WithLineSource(e.dispatcher),
		structured.WithLogger(e.logger),
	)
	e.engine = e.NewEngine()

	var locker ports.DistributedLocker
	if e.store == nil && e.cfg.Backup.Enabled {
		store, l, closeFn, err := openStore(e.cfg.Backup)
		if err != nil {
			e.dispatcher.Destroy()
			return nil, err
		}
		e.store, locker, e.closeStore = store, l, closeFn
	}
	if e.store != nil {
		sopts := []session.Option{session.WithLogger(e.logger)}
		if locker != nil {
			sopts = append(sopts, session.WithLocker(locker))
		}
		e.sessions = session.NewManager(e.store, sopts...)
	}
	return e, nil
}

// NewEngine creates another engine sharing this editor's parser and settings.
// The HTTP server uses it for one engine per session.
func (e *Editor) NewEngine() *runtime.Engine {
	return runtime.NewEngine(e.parser,
		runtime.WithLogger(e.logger),
		runtime.WithHistoryLimit(e.cfg.History.Limit),
		runtime.WithTelemetry(e.telemetry),
	)
}

// UpdateFromCode re-parses text and makes it the source of truth.
func (e *Editor) UpdateFromCode(ctx context.Context, text string, opts runtime.UpdateOptions) (*runtime.UpdateResult, error) {
	return e.engine.UpdateFromCode(ctx, text, opts)
}

// UpdateFromUI applies structured edits and regenerates the text.
func (e *Editor) UpdateFromUI(ctx context.Context, changes runtime.Changes) (*runtime.UpdateResult, error) {
	return e.engine.UpdateFromUI(ctx, changes)
}

func (e *Editor) Undo() bool    { return e.engine.Undo() }
func (e *Editor) Redo() bool    { return e.engine.Redo() }
func (e *Editor) CanUndo() bool { return e.engine.CanUndo() }
func (e *Editor) CanRedo() bool { return e.engine.CanRedo() }
func (e *Editor) Reset()        { e.engine.Reset() }

// State returns a copy of the current state.
func (e *Editor) State() *domain.EditorState {
	return e.engine.State()
}

// Code renders the current model as description text.
func (e *Editor) Code() string {
	return e.engine.GeneratePlantUMLCode()
}

// Mermaid renders the current model as a Mermaid sequence diagram, boxing the selection.
func (e *Editor) Mermaid() string {
	st := e.engine.State()
	return graph.GenerateMermaid(st.Title, st.Actors, st.Actions, &graph.Highlight{SelectedActors: st.SelectedActors})
}

// Validate reports structural problems in text without touching the state.
func (e *Editor) Validate(text string) domain.Validation {
	return e.parser.Validate(text)
}

// Parse returns the line-level result for text through the dispatcher.
func (e *Editor) Parse(ctx context.Context, text string) (domain.ParseResult, error) {
	return e.dispatcher.Parse(ctx, text)
}

func (e *Editor) On(t domain.EventType, fn runtime.Listener) runtime.ListenerID {
	return e.engine.On(t, fn)
}

func (e *Editor) Off(t domain.EventType, id runtime.ListenerID) bool {
	return e.engine.Off(t, id)
}

func (e *Editor) Export() *domain.Export {
	return e.engine.Export()
}

func (e *Editor) Import(data *domain.Export) error {
	return e.engine.Import(data)
}

// Open loads sessionID from the store into the editor, creating it when missing,
// and starts auto-backup to it at the configured interval.
func (e *Editor) Open(ctx context.Context, sessionID string) error {
	if e.sessions == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	export, err := e.sessions.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := e.engine.Import(export); err != nil {
		return err
	}
	e.engine.StartAutoBackup(ctx, e.sessions.Backup(sessionID), e.cfg.Backup.Interval)
	return nil
}

// Save writes the current export under sessionID.
func (e *Editor) Save(ctx context.Context, sessionID string) error {
	if e.sessions == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	return e.sessions.Save(ctx, sessionID, e.engine.Export())
}

// Engine returns the synchronization engine.
func (e *Editor) Engine() *runtime.Engine { return e.engine }

// Dispatcher returns the parse dispatcher.
func (e *Editor) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Parser returns the structured parser.
func (e *Editor) Parser() ports.Parser { return e.parser }

// Sessions returns the session manager, nil without a store.
func (e *Editor) Sessions() *session.Manager { return e.sessions }

// Library returns the attached diagram library, or nil.
func (e *Editor) Library() ports.DiagramLibrary { return e.library }

// OpenDiagram loads a stored diagram by ID and makes its text the source of truth.
func (e *Editor) OpenDiagram(ctx context.Context, id string) (*runtime.UpdateResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("no diagram library configured")
	}
	d, err := e.library.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := e.UpdateFromCode(ctx, d.Code, runtime.UpdateOptions{})
	if err != nil {
		return nil, err
	}
	if d.Title != "" && res.State.Title == "" {
		return e.UpdateFromUI(ctx, runtime.Changes{Title: &d.Title})
	}
	return res, nil
}

// Telemetry returns the diagnostic sink.
func (e *Editor) Telemetry() ports.Telemetry { return e.telemetry }

// Close stops auto-backup, drops listeners and shuts the worker down.
func (e *Editor) Close() {
	e.engine.Destroy()
	e.dispatcher.Destroy()
	if e.closeStore != nil {
		if err := e.closeStore(); err != nil {
			e.logger.Warn("store close failed", "error", err)
		}
	}
}
