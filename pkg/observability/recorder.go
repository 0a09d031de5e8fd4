package observability

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultRecorderLimit bounds the entries kept by a Recorder.
const DefaultRecorderLimit = 1000

// Entry is one diagnostic record.
type Entry struct {
	Time     time.Time      `json:"time"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}

// Recorder keeps the most recent diagnostic entries and named marks.
// It implements ports.Telemetry and mirrors every entry to a slog.Logger.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	marks   map[string]time.Time
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder keeping at most limit entries.
func NewRecorder(logger *slog.Logger, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecorderLimit
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Recorder{
		limit:  limit,
		marks:  make(map[string]time.Time),
		logger: logger.With("component", "diagnostics"),
		now:    time.Now,
	}
}

// Log records an entry under category.
func (r *Recorder) Log(category, message string, attrs ...any) {
	r.logger.Debug(message, append([]any{"category", category}, attrs...)...)
	r.append(Entry{Time: r.now(), Category: category, Message: message, Attrs: toMap(attrs)})
}

// Mark stores the current time under label.
func (r *Recorder) Mark(label string) {
	r.mu.Lock()
	r.marks[label] = r.now()
	r.mu.Unlock()
}

// Measure records and returns the time between two marks.
func (r *Recorder) Measure(name, startMark, endMark string) time.Duration {
	r.mu.Lock()
	start, ok1 := r.marks[startMark]
	end, ok2 := r.marks[endMark]
	r.mu.Unlock()
	if !ok1 || !ok2 {
		return 0
	}
	d := end.Sub(start)
	r.Log("performance", name, "duration", d)
	return d
}

// CaptureError records err with optional context.
func (r *Recorder) CaptureError(err error, attrs ...any) {
	if err == nil {
		return
	}
	r.logger.Warn("captured error", append([]any{"error", err}, attrs...)...)
	m := toMap(attrs)
	if m == nil {
		m = map[string]any{}
	}
	m["error"] = err.Error()
	r.append(Entry{Time: r.now(), Category: "error", Message: err.Error(), Attrs: m})
}

// Entries returns a copy of the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Clear drops all entries and marks.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.marks = make(map[string]time.Time)
}

func (r *Recorder) append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.limit; over > 0 {
		r.entries = append(r.entries[:0:0], r.entries[over:]...)
	}
}

func toMap(attrs []any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		m[fmt.Sprint(attrs[i])] = attrs[i+1]
	}
	return m
}
