package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/lineparser"
	"github.com/aretw0/umlsync/pkg/observability"
	"github.com/aretw0/umlsync/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// healthProbe is parsed by HealthCheck.
const healthProbe = "actor HealthCheck\nHealthCheck -> HealthCheck: ping"

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	WorkerAvailable bool   `json:"workerAvailable"`
	CacheSize       int    `json:"cacheSize"`
	PendingRequests int    `json:"pendingRequests"`
	WorkerState     string `json:"workerState"`
}

// Health is the outcome of a worker round trip.
type Health struct {
	Healthy     bool          `json:"healthy"`
	WorkerState string        `json:"workerState"`
	Latency     time.Duration `json:"latency"`
	Error       string        `json:"error,omitempty"`
}

// Outcome is delivered once by ParseAsync.
type Outcome struct {
	Result domain.ParseResult
	Err    error
}

// Dispatcher is the public parse entry point.
type Dispatcher struct {
	cfg       config.Dispatch
	cache     *Cache
	worker    *Manager
	factory   ContextFactory
	logger    *slog.Logger
	metrics   *observability.Metrics
	telemetry ports.Telemetry
	perf      perfWindow
	yield     func()
	closed    atomic.Bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkerFactory overrides the worker context factory chosen from the config.
func WithWorkerFactory(f ContextFactory) Option {
	return func(d *Dispatcher) {
		d.factory = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records parse tiers, cache events and worker health.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTelemetry sends cache hits, timings and captured errors to t.
func WithTelemetry(t ports.Telemetry) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.telemetry = t
		}
	}
}

// WithCache replaces the dispatch cache.
func WithCache(c *Cache) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.cache = c
		}
	}
}

// New creates a dispatcher. Unless cfg.Worker is "none", the worker is started
// right away; a factory failure leaves the dispatcher on the fallback tiers.
func New(cfg config.Dispatch, opts ...Option) *Dispatcher {
	def := config.DefaultDispatch()
	if cfg.ChunkLines <= 0 {
		cfg.ChunkLines = def.ChunkLines
	}
	if cfg.FallbackLines <= 0 {
		cfg.FallbackLines = def.FallbackLines
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}

	d := &Dispatcher{
		cfg:       cfg,
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		telemetry: ports.NopTelemetry{},
		yield:     runtime.Gosched,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cache == nil {
		d.cache = NewCache(cfg.CacheSize)
	}
	d.logger = d.logger.With("component", "dispatcher")

	if d.factory == nil && (cfg.Worker == "" || cfg.Worker == config.WorkerGoroutine) {
		d.factory = NewPipeContext
	}
	if d.factory != nil && cfg.Worker != config.WorkerNone {
		d.worker = NewManager(d.factory,
			WithTimeout(cfg.Timeout),
			WithReinitDelay(cfg.ReinitDelay),
			WithManagerLogger(d.logger),
			WithManagerMetrics(d.metrics),
		)
	} else {
		d.logger.Info("no worker configured, parsing on the caller goroutine", "worker", cfg.Worker)
	}
	return d
}

// Parse returns the line-level result for text. Worker timeouts and failures
// are absorbed: the result then comes from a lower tier and may be Degraded.
// Only caller cancellation and domain.ErrShutdown are returned as errors.
func (d *Dispatcher) Parse(ctx context.Context, text string) (domain.ParseResult, error) {
	if d.closed.Load() {
		return domain.ParseResult{}, domain.ErrShutdown
	}
	start := time.Now()

	if d.cfg.SafeMode {
		res := lineparser.ParseSafe(text)
		d.observe(observability.TierSafe, start, false)
		return res, nil
	}

	key := CacheKey(text)
	if res, ok := d.cache.Get(key); ok {
		d.metrics.CacheHit()
		d.telemetry.Log("cache", "cache hit", "key", key)
		d.observe(observability.TierCache, start, true)
		return res, nil
	}
	d.metrics.CacheMiss()

	res, tier, err := d.parseUncached(ctx, text)
	if err == nil {
		d.cache.Put(key, res)
		d.observe(tier, start, false)
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ParseResult{}, ctxErr
	}
	if errors.Is(err, domain.ErrShutdown) {
		return domain.ParseResult{}, err
	}

	d.logger.Warn("parse failed, falling back to actor scan", "tier", tier, "error", err)
	d.telemetry.CaptureError(err, "tier", tier)
	res = lineparser.ScanActors(text, d.cfg.FallbackLines)
	res.Notice = fmt.Sprintf("fallback mode: limited functionality (%v)", err)
	d.observe(observability.TierDegraded, start, false)
	return res, nil
}

func (d *Dispatcher) parseUncached(ctx context.Context, text string) (res domain.ParseResult, tier string, err error) {
	tier = observability.TierCooperative
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s parse panic: %v", tier, r)
		}
	}()

	if d.worker != nil && d.worker.Available() {
		tier = observability.TierWorker
		res, err = d.worker.Submit(ctx, text)
		if !errors.Is(err, domain.ErrWorkerUnavailable) {
			return res, tier, err
		}
		// Lost the race with a crash: same as finding no worker.
		tier = observability.TierCooperative
	}
	res, err = d.parseCooperative(ctx, text)
	return res, tier, err
}

// ParseAsync runs Parse in a new goroutine. The channel receives exactly one Outcome.
func (d *Dispatcher) ParseAsync(ctx context.Context, text string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		res, err := d.Parse(ctx, text)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// BatchParse parses texts concurrently and returns results in input order.
// progress, if not nil, is called after each text with the number completed so far.
func (d *Dispatcher) BatchParse(ctx context.Context, texts []string, progress func(done, total int)) ([]domain.ParseResult, error) {
	results := make([]domain.ParseResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.BatchConcurrency)

	var mu sync.Mutex
	done := 0
	for i, text := range texts {
		g.Go(func() error {
			res, err := d.Parse(gctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			results[i] = res
			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(texts))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// HealthCheck sends a probe straight to the worker, bypassing the cache.
func (d *Dispatcher) HealthCheck(ctx context.Context) Health {
	h := Health{WorkerState: StateDisabled.String()}
	if d.worker == nil {
		h.Error = domain.ErrWorkerUnavailable.Error()
		return h
	}
	h.WorkerState = d.worker.State().String()
	start := time.Now()
	res, err := d.worker.Submit(ctx, healthProbe)
	h.Latency = time.Since(start)
	switch {
	case err != nil:
		h.Error = err.Error()
	case len(res.Actors) != 1 || len(res.Messages) != 1:
		h.Error = "unexpected probe result"
	default:
		h.Healthy = true
	}
	return h
}

// ClearCache drops every cached result.
func (d *Dispatcher) ClearCache() {
	d.cache.Clear()
}

// Stats reports worker availability, cache size and in-flight requests.
func (d *Dispatcher) Stats() Stats {
	s := Stats{CacheSize: d.cache.Len(), WorkerState: StateDisabled.String()}
	if d.worker != nil {
		s.WorkerAvailable = d.worker.Available()
		s.PendingRequests = d.worker.Pending()
		s.WorkerState = d.worker.State().String()
	}
	if d.closed.Load() {
		s.WorkerState = StateDestroyed.String()
	}
	return s
}

// Performance summarizes the last 100 parse calls.
func (d *Dispatcher) Performance() Performance {
	return d.perf.summary()
}

// Destroy terminates the worker, rejects pending requests with
// domain.ErrShutdown and empties the cache. Later Parse calls fail.
func (d *Dispatcher) Destroy() {
	if d.closed.Swap(true) {
		return
	}
	if d.worker != nil {
		d.worker.Destroy()
	}
	d.cache.Clear()
}

func (d *Dispatcher) observe(tier string, start time.Time, hit bool) {
	elapsed := time.Since(start)
	d.metrics.ObserveParse(tier, elapsed)
	d.perf.add(elapsed, hit)
	d.telemetry.Log("performance", "parse", "tier", tier, "duration", elapsed)
}
