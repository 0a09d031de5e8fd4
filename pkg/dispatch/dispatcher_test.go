package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginText = "actor User\nparticipant System\nUser -> System: ログイン要求\nSystem --> User: 応答"

func noWorker() config.Dispatch {
	cfg := config.DefaultDispatch()
	cfg.Worker = config.WorkerNone
	return cfg
}

func TestDispatcher_WorkerPathCaches(t *testing.T) {
	var calls atomic.Int32
	fake := newFakeContext(nil)
	d := New(config.DefaultDispatch(), WithWorkerFactory(factoryOf(&calls, func() *fakeContext { return fake })))
	defer d.Destroy()

	res, err := d.Parse(context.Background(), loginText)
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "System"}, res.ActorNames())
	assert.False(t, res.Degraded)

	again, err := d.Parse(context.Background(), loginText)
	require.NoError(t, err)
	assert.Equal(t, res.Messages, again.Messages)
	assert.Equal(t, int32(1), fake.sent.Load(), "cache hit does not touch the worker")

	stats := d.Stats()
	assert.True(t, stats.WorkerAvailable)
	assert.Equal(t, 1, stats.CacheSize)
	assert.Equal(t, "ready", stats.WorkerState)

	perf := d.Performance()
	assert.Equal(t, 2, perf.Count)
	assert.InDelta(t, 0.5, perf.CacheHitRate, 0.001)
}

func TestDispatcher_DefaultGoroutineWorker(t *testing.T) {
	d := New(config.DefaultDispatch())
	defer d.Destroy()

	res, err := d.Parse(context.Background(), loginText)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "-->", res.Messages[1].Arrow)

	h := d.HealthCheck(context.Background())
	assert.True(t, h.Healthy, h.Error)
	assert.Equal(t, "ready", h.WorkerState)
}

func TestDispatcher_SafeModeBypassesCacheAndWorker(t *testing.T) {
	var calls atomic.Int32
	fake := newFakeContext(nil)
	cfg := config.DefaultDispatch()
	cfg.SafeMode = true
	d := New(cfg, WithWorkerFactory(factoryOf(&calls, func() *fakeContext { return fake })))
	defer d.Destroy()

	res, err := d.Parse(context.Background(), loginText+"\nnote left: hi\ngroup g")
	require.NoError(t, err)
	assert.True(t, res.SafeMode)
	assert.Len(t, res.Messages, 2)
	assert.Empty(t, res.Notes)
	assert.Empty(t, res.Groups)
	assert.Zero(t, fake.sent.Load())
	assert.Zero(t, d.Stats().CacheSize)
}

func TestDispatcher_FailingWorkerDegrades(t *testing.T) {
	var calls atomic.Int32
	d := New(config.DefaultDispatch(), WithWorkerFactory(func() (WorkerContext, error) {
		calls.Add(1)
		return newFakeContext(func(f *fakeContext, req Request) error {
			f.responses <- Response{ID: req.ID, Error: "forced failure"}
			return nil
		}), nil
	}))
	defer d.Destroy()

	for i := 0; i < 3; i++ {
		res, err := d.Parse(context.Background(), fmt.Sprintf("actor A%d\nA%d -> B: x", i, i))
		require.NoError(t, err, "parse resolves even though the worker fails")
		assert.True(t, res.Degraded)
		assert.Len(t, res.Actors, 1)
		assert.Empty(t, res.Messages, "degraded scan recognizes actors only")
		assert.Contains(t, res.Notice, "forced failure")
	}
	assert.Zero(t, d.Stats().CacheSize, "degraded results are not cached")
}

func TestDispatcher_CrashingWorkerDegrades(t *testing.T) {
	var calls atomic.Int32
	cfg := config.DefaultDispatch()
	cfg.ReinitDelay = time.Hour
	d := New(cfg, WithWorkerFactory(factoryOf(&calls, func() *fakeContext { return newFakeContext(crash) })))
	defer d.Destroy()

	res, err := d.Parse(context.Background(), "actor A")
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	// While the worker is down the cooperative tier serves requests.
	res, err = d.Parse(context.Background(), "actor B\ngroup g")
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Groups, 1)
	assert.False(t, d.Stats().WorkerAvailable)
}

func TestDispatcher_TimeoutDegradesWithoutCaching(t *testing.T) {
	var calls atomic.Int32
	fake := newFakeContext(hang)
	cfg := config.DefaultDispatch()
	cfg.Timeout = 20 * time.Millisecond
	d := New(cfg, WithWorkerFactory(factoryOf(&calls, func() *fakeContext { return fake })))
	defer d.Destroy()

	res, err := d.Parse(context.Background(), loginText)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Notice, "timed out")

	fake.release()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, d.Stats().CacheSize, "late responses are not cached")
	assert.Zero(t, d.Stats().PendingRequests)
}

func TestDispatcher_CooperativeChunks(t *testing.T) {
	d := New(noWorker())
	defer d.Destroy()
	yields := 0
	d.yield = func() { yields++ }

	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "actor A%d\n", i)
	}
	b.WriteString("loop forever")

	res, err := d.Parse(context.Background(), b.String())
	require.NoError(t, err)
	assert.Len(t, res.Actors, 25)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "loop", res.Groups[0].Type)
	assert.Equal(t, 2, yields, "26 lines in chunks of 10 yield twice")
	assert.Equal(t, 1, d.Stats().CacheSize)
	assert.False(t, d.Stats().WorkerAvailable)
}

func TestDispatcher_CooperativeIdleBudget(t *testing.T) {
	cfg := noWorker()
	cfg.IdleBudget = time.Hour
	d := New(cfg)
	defer d.Destroy()
	yields := 0
	d.yield = func() { yields++ }

	res, err := d.Parse(context.Background(), strings.Repeat("actor A\n", 30))
	require.NoError(t, err)
	assert.Len(t, res.Actors, 30)
	assert.Zero(t, yields, "a large budget finishes in one chunk")
}

func TestDispatcher_CacheBoundThroughParse(t *testing.T) {
	d := New(noWorker())
	defer d.Destroy()

	for i := 0; i < 101; i++ {
		_, err := d.Parse(context.Background(), fmt.Sprintf("actor A%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 100, d.Stats().CacheSize)

	d.ClearCache()
	assert.Zero(t, d.Stats().CacheSize)
}

func TestDispatcher_DestroyRejectsPending(t *testing.T) {
	var calls atomic.Int32
	fake := newFakeContext(hang)
	d := New(config.DefaultDispatch(), WithWorkerFactory(factoryOf(&calls, func() *fakeContext { return fake })))

	out := d.ParseAsync(context.Background(), loginText)
	require.Eventually(t, func() bool { return d.Stats().PendingRequests == 1 }, time.Second, time.Millisecond)

	d.Destroy()

	o := <-out
	assert.ErrorIs(t, o.Err, domain.ErrShutdown)

	_, err := d.Parse(context.Background(), loginText)
	assert.ErrorIs(t, err, domain.ErrShutdown)
	assert.Equal(t, "destroyed", d.Stats().WorkerState)
}

func TestDispatcher_CanceledContext(t *testing.T) {
	d := New(noWorker())
	defer d.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Parse(ctx, strings.Repeat("actor A\n", 20))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_BatchParse(t *testing.T) {
	d := New(config.DefaultDispatch(), WithMetrics(observability.NewMetrics(nil)))
	defer d.Destroy()

	texts := []string{"actor A", "actor B\nactor C", "participant D"}
	var last atomic.Int32
	results, err := d.BatchParse(context.Background(), texts, func(done, total int) {
		assert.Equal(t, 3, total)
		last.Store(int32(done))
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"A"}, results[0].ActorNames())
	assert.Equal(t, []string{"B", "C"}, results[1].ActorNames())
	assert.Equal(t, []string{"D"}, results[2].ActorNames())
	assert.Equal(t, int32(3), last.Load())
}

func TestDispatcher_TelemetryRecordsCacheHits(t *testing.T) {
	rec := observability.NewRecorder(nil, 10)
	d := New(noWorker(), WithTelemetry(rec))
	defer d.Destroy()

	_, _ = d.Parse(context.Background(), "actor A")
	_, _ = d.Parse(context.Background(), "actor A")

	var hits int
	for _, e := range rec.Entries() {
		if e.Category == "cache" {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
}
