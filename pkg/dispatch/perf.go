package dispatch

import (
	"slices"
	"sync"
	"time"
)

const perfWindowSize = 100

// Performance summarizes the most recent parse calls.
type Performance struct {
	Count        int           `json:"count"`
	Average      time.Duration `json:"average"`
	Median       time.Duration `json:"median"`
	Min          time.Duration `json:"min"`
	Max          time.Duration `json:"max"`
	CacheHitRate float64       `json:"cacheHitRate"`
}

type perfSample struct {
	d   time.Duration
	hit bool
}

type perfWindow struct {
	mu      sync.Mutex
	samples []perfSample
}

func (w *perfWindow) add(d time.Duration, hit bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, perfSample{d: d, hit: hit})
	if len(w.samples) > perfWindowSize {
		w.samples = w.samples[len(w.samples)-perfWindowSize:]
	}
}

func (w *perfWindow) summary() Performance {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := Performance{Count: len(w.samples)}
	if p.Count == 0 {
		return p
	}

	durations := make([]time.Duration, 0, p.Count)
	var total time.Duration
	hits := 0
	for _, s := range w.samples {
		durations = append(durations, s.d)
		total += s.d
		if s.hit {
			hits++
		}
	}
	slices.Sort(durations)

	p.Average = total / time.Duration(p.Count)
	p.Min = durations[0]
	p.Max = durations[len(durations)-1]
	if mid := len(durations) / 2; len(durations)%2 == 0 {
		p.Median = (durations[mid-1] + durations[mid]) / 2
	} else {
		p.Median = durations[mid]
	}
	p.CacheHitRate = float64(hits) / float64(p.Count)
	return p
}
