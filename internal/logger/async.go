package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered log output.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncEntry pairs a record with the derived handler that must write it, so
// WithAttrs and WithGroup children share one queue and one writer.
type asyncEntry struct {
	h   slog.Handler
	rec slog.Record
}

type asyncQueue struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan asyncEntry
	done    chan struct{}
	dropped atomic.Int64
}

// AsyncHandler moves log writes off the request path. A single writer
// drains the queue, so records keep their submission order. When the
// queue is full the record is dropped and counted.
type AsyncHandler struct {
	inner slog.Handler
	q     *asyncQueue
}

// NewAsyncHandler starts the writer goroutine with a queue of size records.
func NewAsyncHandler(inner slog.Handler, size int) *AsyncHandler {
	if size < 1 {
		size = 1
	}
	q := &asyncQueue{ch: make(chan asyncEntry, size), done: make(chan struct{})}
	go q.write()
	return &AsyncHandler{inner: inner, q: q}
}

func (q *asyncQueue) write() {
	defer close(q.done)
	for e := range q.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a copy of rec. Records arriving after Close are dropped.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		h.q.dropped.Add(1)
		return nil
	}
	select {
	case h.q.ch <- asyncEntry{h: h.inner, rec: rec.Clone()}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// Dropped returns the number of records lost to a full or closed queue.
func (h *AsyncHandler) Dropped() int64 {
	return h.q.dropped.Load()
}

// Close stops accepting records, waits for the queue to drain and, if any
// records were lost, writes one summary record synchronously. Safe to call
// more than once.
func (h *AsyncHandler) Close() {
	h.q.mu.Lock()
	if h.q.closed {
		h.q.mu.Unlock()
		return
	}
	h.q.closed = true
	close(h.q.ch)
	h.q.mu.Unlock()
	<-h.q.done

	if n := h.q.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async log records dropped", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
