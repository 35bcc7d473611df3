// Package worker runs a dispatcher behind a pair of channels: one goroutine per instance
// consumes requests in arrival order and emits exactly one response per request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/chat-worker/pkg/dispatcher"
)

const logPrefix = "worker:worker"

// DefaultBufferSize is used when Options.BufferSize is not positive.
const DefaultBufferSize = 64

var (
	ErrClosed     = errors.New("worker closed")
	ErrNilRequest = errors.New("nil request")
)

// ObserveFunc is called after each request is handled, before its response is emitted.
type ObserveFunc func(ctx context.Context, req *dispatcher.WorkRequest, resp *dispatcher.WorkResponse, elapsed time.Duration)

// Options configures a Worker.
type Options struct {
	BufferSize int
	// Observe, if set, runs on the worker goroutine for every request.
	Observe ObserveFunc
}

// Worker is one dispatcher instance. Producers may call Send concurrently; requests are
// still handled one at a time in the order they were accepted.
type Worker struct {
	disp    *dispatcher.Dispatcher
	observe ObserveFunc

	in   chan *dispatcher.WorkRequest
	out  chan *dispatcher.WorkResponse
	quit chan struct{}
	done chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New starts a worker goroutine serving disp.
func New(disp *dispatcher.Dispatcher, opts Options) *Worker {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	w := &Worker{
		disp:    disp,
		observe: opts.Observe,
		in:      make(chan *dispatcher.WorkRequest, size),
		out:     make(chan *dispatcher.WorkResponse, size),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// Requests returns the inbound channel. Sending on it after Close panics; use Send when
// producers may race with shutdown.
func (w *Worker) Requests() chan<- *dispatcher.WorkRequest {
	return w.in
}

// Responses returns the outbound channel. It is closed once the worker has drained
// every accepted request after Close. Callers must keep reading it or the worker stalls.
func (w *Worker) Responses() <-chan *dispatcher.WorkResponse {
	return w.out
}

// Send enqueues req, blocking while the buffer is full.
func (w *Worker) Send(ctx context.Context, req *dispatcher.WorkRequest) error {
	if req == nil {
		return ErrNilRequest
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.in <- req:
		return nil
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%s - send %s: %w", logPrefix, req.Action, ctx.Err())
	}
}

// Close stops accepting requests, waits for the accepted ones to be answered and
// closes Responses.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.quit)
		w.mu.Lock()
		w.closed = true
		close(w.in)
		w.mu.Unlock()
	})
	<-w.done
}

// Done is closed after the worker goroutine exits.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	defer close(w.out)

	for req := range w.in {
		w.out <- w.handle(req)
	}
	slog.Debug(fmt.Sprintf("%s - drained, exiting", logPrefix))
}

// handle always produces a response, even when the request is nil or a hook panics.
func (w *Worker) handle(req *dispatcher.WorkRequest) (resp *dispatcher.WorkResponse) {
	if req == nil {
		return dispatcher.ErrorResponse(nil, dispatcher.CodeInvalidRequest, "Empty request")
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - request %s panicked: %v", logPrefix, req.ID, r))
			resp = dispatcher.ErrorResponse(req.ID, dispatcher.CodeInternal, fmt.Sprintf("action %s failed: %v", req.Action, r))
		}
	}()

	ctx := context.Background()
	start := time.Now()
	resp = w.disp.Dispatch(ctx, req)
	if w.observe != nil {
		w.observe(ctx, req, resp, time.Since(start))
	}
	return resp
}
