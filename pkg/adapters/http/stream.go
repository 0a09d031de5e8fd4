package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager fans engine events out to SSE subscribers, per session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Subscribers reports how many streams are attached to a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// streamEvent is the SSE payload for one engine event.
type streamEvent struct {
	Type   domain.EventType    `json:"type"`
	Source domain.UpdateSource `json:"source,omitempty"`
	Diff   *domain.StateDiff   `json:"diff,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func encodeEvent(ev domain.Event) (string, error) {
	out := streamEvent{Type: ev.Type, Source: ev.Source, Diff: ev.Diff}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// matchesWatch reports whether msg touches any of the watched fields.
// Error and lifecycle events always pass.
func matchesWatch(msg string, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	var ev streamEvent
	if err := json.Unmarshal([]byte(msg), &ev); err != nil || ev.Diff == nil {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "actors":
			if len(ev.Diff.ActorsAdded) > 0 || len(ev.Diff.ActorsRemoved) > 0 {
				return true
			}
		case "code":
			if ev.Diff.Code != nil {
				return true
			}
		case "title":
			if ev.Diff.Title != nil {
				return true
			}
		case "actions":
			if ev.Diff.Actions != nil {
				return true
			}
		case "selection":
			if ev.Diff.Selection != nil {
				return true
			}
		}
	}
	return false
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// The optional watch query parameter is a comma separated list of diff fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	sessionID := chi.URLParam(r, "id")
	if _, ok := s.engine(w, r); !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watch []string
	if q := r.URL.Query().Get("watch"); q != "" {
		watch = strings.Split(q, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
