package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Bounded(t *testing.T) {
	r := NewRecorder(nil, 3)
	for i := 0; i < 5; i++ {
		r.Log("cache", fmt.Sprintf("hit %d", i))
	}

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "hit 2", entries[0].Message)
	assert.Equal(t, "hit 4", entries[2].Message)
}

func TestRecorder_MarksAndErrors(t *testing.T) {
	r := NewRecorder(nil, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	r.now = func() time.Time { return tick }

	r.Mark("start")
	tick = base.Add(40 * time.Millisecond)
	r.Mark("end")

	assert.Equal(t, 40*time.Millisecond, r.Measure("parse", "start", "end"))
	assert.Zero(t, r.Measure("missing", "start", "nope"))

	r.CaptureError(errors.New("boom"), "tier", "worker")
	r.CaptureError(nil)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "performance", entries[0].Category)
	assert.Equal(t, "error", entries[1].Category)
	assert.Equal(t, "worker", entries[1].Attrs["tier"])

	r.Clear()
	assert.Empty(t, r.Entries())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveParse(TierWorker, time.Millisecond)
	m.ObserveParse(TierWorker, 2*time.Millisecond)
	m.CacheHit()
	m.SetPending(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.parses.WithLabelValues(TierWorker)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveParse(TierSafe, 0) })
}
