package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Closer flushes buffered log output. Close blocks until every queued
// record has been written.
type Closer interface {
	Close() error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// asyncCore is the single queue shared by an AsyncHandler and all handlers
// derived from it via WithAttrs/WithGroup. Records are enqueued already
// bound to their derived handler, so attrs and groups survive the hop to
// the drain goroutine.
type asyncCore struct {
	queue   chan func()
	done    chan struct{}
	dropped atomic.Int64
}

func (c *asyncCore) drain() {
	defer close(c.done)
	for write := range c.queue {
		write()
	}
}

// AsyncHandler moves record writing off the hot path. A full queue drops
// the record rather than blocking the caller.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler wraps inner with a buffered queue of the given capacity
// and starts the drain goroutine.
func NewAsyncHandler(inner slog.Handler, buffer int) *AsyncHandler {
	core := &asyncCore{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go core.drain()
	return &AsyncHandler{inner: inner, core: core}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // hugeParam: slog.Handler interface
	inner := h.inner
	select {
	case h.core.queue <- func() { _ = inner.Handle(context.Background(), rec) }:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// Dropped returns how many records were discarded because the queue was
// full.
func (h *AsyncHandler) Dropped() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and waits for the queue to empty.
func (h *AsyncHandler) Close() error {
	close(h.core.queue)
	<-h.core.done
	return nil
}
