package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/observability"
)

const (
	// DefaultTimeout is the deadline of a single worker request.
	DefaultTimeout = 3 * time.Second
	// DefaultReinitDelay is the pause between a worker crash and its re-creation.
	DefaultReinitDelay = time.Second
)

// State is the lifecycle state of the managed worker.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateError
	StateReinitializing
	// StateDisabled is reached when the factory fails. It is never left.
	StateDisabled
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateReinitializing:
		return "reinitializing"
	case StateDisabled:
		return "disabled"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// WorkerError is a parse failure reported by the worker for one request.
type WorkerError struct {
	ID      uint64
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker request %d: %s", e.ID, e.Message)
}

type reply struct {
	res domain.ParseResult
	err error
}

type pendingRequest struct {
	reply    chan reply
	deadline time.Time
}

// Manager owns one worker context: it creates it, correlates requests with
// responses, and recreates it after a runtime failure.
type Manager struct {
	factory     ContextFactory
	timeout     time.Duration
	reinitDelay time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu          sync.Mutex
	state       State
	wctx        WorkerContext
	generation  uint64
	stop        chan struct{}
	nextID      uint64
	pending     map[uint64]*pendingRequest
	reinitTimer *time.Timer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithReinitDelay sets the pause before re-creating a crashed worker.
func WithReinitDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.reinitDelay = d
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithManagerMetrics publishes pending counts and restarts.
func WithManagerMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates the manager and initializes the worker immediately.
func NewManager(factory ContextFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:     factory,
		timeout:     DefaultTimeout,
		reinitDelay: DefaultReinitDelay,
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		pending:     make(map[uint64]*pendingRequest),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "worker")
	m.init(false)
	return m
}

func (m *Manager) init(reinit bool) {
	m.mu.Lock()
	if m.state == StateDestroyed || m.state == StateDisabled {
		m.mu.Unlock()
		return
	}
	if reinit {
		m.state = StateReinitializing
	} else {
		m.state = StateInitializing
	}
	m.mu.Unlock()

	wctx, err := m.create()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDestroyed {
		if wctx != nil {
			_ = wctx.Terminate()
		}
		return
	}
	if err != nil {
		m.state = StateDisabled
		m.logger.Warn("worker disabled, using fallback parsing", "error", err)
		return
	}

	m.wctx = wctx
	m.generation++
	m.stop = make(chan struct{})
	m.state = StateReady
	go m.pump(wctx, m.generation, m.stop)
	m.logger.Debug("worker ready", "generation", m.generation)
}

func (m *Manager) create() (wctx WorkerContext, err error) {
	if m.factory == nil {
		return nil, errors.New("no worker factory")
	}
	defer func() {
		if r := recover(); r != nil {
			wctx, err = nil, fmt.Errorf("worker factory panic: %v", r)
		}
	}()
	wctx, err = m.factory()
	if err == nil && wctx == nil {
		err = errors.New("worker factory returned no context")
	}
	return wctx, err
}

func (m *Manager) pump(wctx WorkerContext, gen uint64, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case resp := <-wctx.Responses():
			m.deliver(resp)
		case err := <-wctx.Failures():
			m.fail(gen, err)
			return
		}
	}
}

func (m *Manager) deliver(resp Response) {
	m.mu.Lock()
	p, ok := m.pending[resp.ID]
	if ok {
		delete(m.pending, resp.ID)
	}
	n := len(m.pending)
	m.mu.Unlock()

	if !ok {
		// Timed out or rejected earlier.
		m.logger.Debug("discarding late response", "id", resp.ID)
		return
	}
	m.metrics.SetPending(n)

	switch {
	case resp.Error != "":
		p.reply <- reply{err: &WorkerError{ID: resp.ID, Message: resp.Error}}
	case resp.Result == nil:
		p.reply <- reply{err: &WorkerError{ID: resp.ID, Message: "empty response"}}
	default:
		p.reply <- reply{res: *resp.Result}
	}
}

// fail handles a runtime error of generation gen: reject everything in flight,
// tear the context down and schedule re-initialization.
func (m *Manager) fail(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateReady {
		m.mu.Unlock()
		return
	}
	m.state = StateError
	rejected := m.pending
	m.pending = make(map[uint64]*pendingRequest)
	wctx := m.wctx
	m.wctx = nil
	close(m.stop)
	m.reinitTimer = time.AfterFunc(m.reinitDelay, func() {
		m.metrics.WorkerRestarted()
		m.init(true)
	})
	m.mu.Unlock()

	m.logger.Error("worker failed", "error", cause, "rejected", len(rejected), "retry_in", m.reinitDelay)
	m.metrics.SetPending(0)
	for _, p := range rejected {
		p.reply <- reply{err: fmt.Errorf("%w: %v", domain.ErrWorkerFailed, cause)}
	}
	_ = wctx.Terminate()
}

// Submit sends code to the worker and waits for its result, the request
// deadline, or ctx. It never queues: a worker that is not ready yields
// domain.ErrWorkerUnavailable at once.
func (m *Manager) Submit(ctx context.Context, code string) (domain.ParseResult, error) {
	m.mu.Lock()
	switch m.state {
	case StateReady:
	case StateDestroyed:
		m.mu.Unlock()
		return domain.ParseResult{}, domain.ErrShutdown
	default:
		m.mu.Unlock()
		return domain.ParseResult{}, domain.ErrWorkerUnavailable
	}
	m.nextID++
	id := m.nextID
	p := &pendingRequest{reply: make(chan reply, 1), deadline: time.Now().Add(m.timeout)}
	m.pending[id] = p
	wctx := m.wctx
	n := len(m.pending)
	m.mu.Unlock()
	m.metrics.SetPending(n)

	if err := wctx.Send(Request{ID: id, Code: code}); err != nil {
		if m.remove(id) {
			return domain.ParseResult{}, fmt.Errorf("%w: %v", domain.ErrWorkerFailed, err)
		}
		r := <-p.reply
		return r.res, r.err
	}

	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case r := <-p.reply:
		return r.res, r.err
	case <-timer.C:
		if m.remove(id) {
			m.logger.Warn("worker request timed out", "id", id, "timeout", m.timeout)
			return domain.ParseResult{}, fmt.Errorf("%w after %s", domain.ErrTimeout, m.timeout)
		}
	case <-ctx.Done():
		if m.remove(id) {
			return domain.ParseResult{}, ctx.Err()
		}
	}
	// Someone else settled the request concurrently; its reply is on the way.
	r := <-p.reply
	return r.res, r.err
}

// remove deletes a pending entry and reports whether it was still present.
func (m *Manager) remove(id uint64) bool {
	m.mu.Lock()
	_, ok := m.pending[id]
	delete(m.pending, id)
	n := len(m.pending)
	m.mu.Unlock()
	if ok {
		m.metrics.SetPending(n)
	}
	return ok
}

// Destroy terminates the worker and rejects every pending request with
// domain.ErrShutdown. The manager cannot be reused.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return
	}
	m.state = StateDestroyed
	if m.reinitTimer != nil {
		m.reinitTimer.Stop()
	}
	rejected := m.pending
	m.pending = make(map[uint64]*pendingRequest)
	wctx := m.wctx
	m.wctx = nil
	if wctx != nil {
		close(m.stop)
	}
	m.mu.Unlock()

	for _, p := range rejected {
		p.reply <- reply{err: domain.ErrShutdown}
	}
	if wctx != nil {
		_ = wctx.Terminate()
	}
	m.metrics.SetPending(0)
}

// Available reports whether requests can be submitted right now.
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the number of requests awaiting a response.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
