package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
)

// Listener receives engine events. A returned error is logged and does not
// stop other listeners.
type Listener func(domain.Event) error

// ListenerID identifies a registration for Off.
type ListenerID uint64

type registration struct {
	id ListenerID
	fn Listener
}

type listeners struct {
	mu     sync.Mutex
	next   ListenerID
	byType map[domain.EventType][]registration
}

func newListeners() *listeners {
	return &listeners{byType: make(map[domain.EventType][]registration)}
}

func (l *listeners) on(t domain.EventType, fn Listener) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.byType[t] = append(l.byType[t], registration{id: l.next, fn: fn})
	return l.next
}

func (l *listeners) off(t domain.EventType, id ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	regs := l.byType[t]
	for i, r := range regs {
		if r.id == id {
			l.byType[t] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

func (l *listeners) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byType = make(map[domain.EventType][]registration)
}

// emit calls the listeners registered for ev.Type in registration order.
func (l *listeners) emit(ev domain.Event, logger *slog.Logger, telemetry ports.Telemetry) {
	l.mu.Lock()
	regs := append([]registration(nil), l.byType[ev.Type]...)
	l.mu.Unlock()

	for _, r := range regs {
		if err := call(r.fn, ev); err != nil {
			logger.Error("listener failed", "event", ev.Type, "listener", r.id, "error", err)
			telemetry.CaptureError(err, "event", string(ev.Type))
		}
	}
}

func call(fn Listener, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}
