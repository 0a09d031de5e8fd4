package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Parse tiers, used as the "tier" label.
const (
	TierSafe        = "safe"
	TierCache       = "cache"
	TierWorker      = "worker"
	TierCooperative = "cooperative"
	TierDegraded    = "degraded"
)

// Metrics groups the collectors exported by the dispatcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	parses         *prometheus.CounterVec
	parseDuration  *prometheus.HistogramVec
	cacheEvents    *prometheus.CounterVec
	workerRestarts prometheus.Counter
	pending        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		parses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umlsync_parse_total",
				Help: "Total number of parse calls by resolving tier",
			},
			[]string{"tier"},
		),
		parseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "umlsync_parse_duration_seconds",
				Help:    "Duration of parse calls by resolving tier",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"tier"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umlsync_cache_events_total",
				Help: "Dispatch cache lookups by result",
			},
			[]string{"result"},
		),
		workerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umlsync_worker_restarts_total",
			Help: "Number of worker re-initializations after a failure",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "umlsync_pending_requests",
			Help: "Worker requests awaiting a response",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.parses, m.parseDuration, m.cacheEvents, m.workerRestarts, m.pending)
	}
	return m
}

// ObserveParse records one resolved parse call.
func (m *Metrics) ObserveParse(tier string, d time.Duration) {
	if m == nil {
		return
	}
	m.parses.WithLabelValues(tier).Inc()
	m.parseDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// CacheHit records a cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheEvents.WithLabelValues("hit").Inc()
	}
}

// CacheMiss records a cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheEvents.WithLabelValues("miss").Inc()
	}
}

// WorkerRestarted records a re-initialization attempt.
func (m *Metrics) WorkerRestarted() {
	if m != nil {
		m.workerRestarts.Inc()
	}
}

// SetPending publishes the number of in-flight worker requests.
func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.pending.Set(float64(n))
	}
}
