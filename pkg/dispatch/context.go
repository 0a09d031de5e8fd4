package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrContextClosed is returned by Send after Terminate.
var ErrContextClosed = errors.New("worker context closed")

// WorkerContext is one isolated execution context running the line parser.
// Responses may arrive in any order; Failures delivers at most one runtime error.
type WorkerContext interface {
	Send(req Request) error
	Responses() <-chan Response
	Failures() <-chan error
	Terminate() error
}

// ContextFactory creates a worker context. A factory error disables the worker.
type ContextFactory func() (WorkerContext, error)

const outboxSize = 256

// StreamContext adapts a request writer and a response reader into a WorkerContext.
// Requests are encoded by a single writer goroutine; responses are decoded by a
// single reader goroutine. Any stream error before Terminate is a runtime failure.
type StreamContext struct {
	w       io.WriteCloser
	r       io.Reader
	closeFn func() error

	outbox    chan Request
	responses chan Response
	failures  chan error
	closed    chan struct{}

	terminated atomic.Bool
	failOnce   sync.Once
	closeOnce  sync.Once
}

// NewStreamContext starts the reader and writer goroutines. closeFn, if not nil,
// is called by Terminate after the request stream is closed.
func NewStreamContext(w io.WriteCloser, r io.Reader, closeFn func() error) *StreamContext {
	s := &StreamContext{
		w:         w,
		r:         r,
		closeFn:   closeFn,
		outbox:    make(chan Request, outboxSize),
		responses: make(chan Response, outboxSize),
		failures:  make(chan error, 1),
		closed:    make(chan struct{}),
	}
	go s.writeLoop()
	go s.readLoop()
	return s
}

// Send queues a request for the worker.
func (s *StreamContext) Send(req Request) error {
	if s.terminated.Load() {
		return ErrContextClosed
	}
	select {
	case s.outbox <- req:
		return nil
	case <-s.closed:
		return ErrContextClosed
	default:
		return fmt.Errorf("worker outbox full (%d requests)", outboxSize)
	}
}

func (s *StreamContext) Responses() <-chan Response { return s.responses }

func (s *StreamContext) Failures() <-chan error { return s.failures }

// Terminate closes the streams. It is safe to call more than once.
func (s *StreamContext) Terminate() error {
	var err error
	s.closeOnce.Do(func() {
		s.terminated.Store(true)
		close(s.closed)
		err = s.w.Close()
		if s.closeFn != nil {
			if cerr := s.closeFn(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (s *StreamContext) writeLoop() {
	enc := msgpack.NewEncoder(s.w)
	for {
		select {
		case <-s.closed:
			return
		case req := <-s.outbox:
			if err := enc.Encode(&req); err != nil {
				s.fail(fmt.Errorf("failed to send request %d: %w", req.ID, err))
				return
			}
		}
	}
}

func (s *StreamContext) readLoop() {
	dec := msgpack.NewDecoder(s.r)
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("worker exited")
			}
			s.fail(err)
			return
		}
		select {
		case s.responses <- resp:
		case <-s.closed:
			return
		}
	}
}

func (s *StreamContext) fail(err error) {
	if s.terminated.Load() {
		return
	}
	s.failOnce.Do(func() {
		s.failures <- err
	})
}

// NewPipeContext runs ServeWorker in a goroutine connected through io.Pipe.
// A panic in the serving goroutine surfaces as a runtime failure.
func NewPipeContext() (WorkerContext, error) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker panic: %v", r)
			}
			_ = respW.CloseWithError(err)
		}()
		err = ServeWorker(ctx, reqR, respW)
	}()

	return NewStreamContext(reqW, respR, func() error {
		cancel()
		_ = reqR.Close()
		return respR.Close()
	}), nil
}
