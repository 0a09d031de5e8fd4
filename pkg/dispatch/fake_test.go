package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aretw0/umlsync/pkg/lineparser"
)

// fakeContext is a scriptable WorkerContext. onSend decides what happens to
// each request; the default answers immediately with the line parser.
type fakeContext struct {
	responses  chan Response
	failures   chan error
	onSend     func(f *fakeContext, req Request) error
	sent       atomic.Int32
	terminated atomic.Bool

	mu   sync.Mutex
	held []Request
}

func newFakeContext(onSend func(f *fakeContext, req Request) error) *fakeContext {
	if onSend == nil {
		onSend = answer
	}
	return &fakeContext{
		responses: make(chan Response, 64),
		failures:  make(chan error, 1),
		onSend:    onSend,
	}
}

func (f *fakeContext) Send(req Request) error {
	if f.terminated.Load() {
		return ErrContextClosed
	}
	f.sent.Add(1)
	return f.onSend(f, req)
}

func (f *fakeContext) Responses() <-chan Response { return f.responses }
func (f *fakeContext) Failures() <-chan error     { return f.failures }

func (f *fakeContext) Terminate() error {
	f.terminated.Store(true)
	return nil
}

// hold keeps the request unanswered until release.
func (f *fakeContext) hold(req Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = append(f.held, req)
}

func (f *fakeContext) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

// release answers every held request.
func (f *fakeContext) release() {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.mu.Unlock()
	for _, req := range held {
		_ = answer(f, req)
	}
}

func answer(f *fakeContext, req Request) error {
	res := lineparser.Parse(req.Code)
	f.responses <- Response{ID: req.ID, Result: &res}
	return nil
}

func hang(f *fakeContext, req Request) error {
	f.hold(req)
	return nil
}

func crash(f *fakeContext, req Request) error {
	select {
	case f.failures <- errors.New("segfault"):
	default:
	}
	return nil
}

// factoryOf returns a factory handing out contexts from newCtx and counting calls.
func factoryOf(calls *atomic.Int32, newCtx func() *fakeContext) ContextFactory {
	return func() (WorkerContext, error) {
		calls.Add(1)
		return newCtx(), nil
	}
}
