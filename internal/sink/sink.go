// Package sink implements a batching log-shipping sink for a remote document
// store. Producers hand events to Emit, which never blocks on network I/O; a
// single background worker forms batches by size or interval and delivers
// each one through a server-side bulk-import procedure.
package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/harborlog/docsink/internal/docstore"
)

// eagerFirstFlush caps how long the very first batch waits before shipping,
// so a short-lived process still gets its logs out.
const eagerFirstFlush = time.Second

// Sink is the public entry point. Construct with New, feed with Emit, and
// Close on shutdown for a final best-effort flush.
type Sink struct {
	opts   Options
	queue  *batchQueue
	engine *deliveryEngine
	diag   Diagnostics

	degraded atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// Stats is a point-in-time snapshot of the sink's counters.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Dropped   uint64 `json:"dropped"`
	Batches   uint64 `json:"batches"`
	Delivered uint64 `json:"delivered"`
	Retries   uint64 `json:"retries"`
	Failures  uint64 `json:"failures"`
	Degraded  bool   `json:"degraded"`
}

// New validates opts, performs the one-time schema setup and starts the flush
// worker. Configuration errors are the only way New fails; schema setup
// errors leave the sink running degraded (deliveries fail per-batch until the
// schema exists) and are reported on the diagnostic channel.
func New(ctx context.Context, store docstore.DocumentStore, opts Options) (*Sink, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	mgr := newSchemaManager(store, opts)
	s := &Sink{
		opts:   opts,
		queue:  newBatchQueue(opts.QueueLimit, opts.Diagnostics),
		engine: newDeliveryEngine(store, opts, mgr.procs.BulkImport.ID),
		diag:   opts.Diagnostics,
		done:   make(chan struct{}),
	}

	if err := mgr.setup(ctx); err != nil {
		s.degraded.Store(true)
		s.diag.Printf("docsink: schema setup failed, sink is degraded until the schema exists: %v", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.worker(workerCtx)
	return s, nil
}

// Emit enqueues one event for delivery. Safe from any goroutine, never blocks
// on I/O, never panics; events emitted after Close (or into a full queue) are
// dropped.
func (s *Sink) Emit(e *LogEvent) {
	if e == nil || s.closed.Load() {
		return
	}
	s.queue.enqueue(e)
}

// Close stops the worker after one final best-effort flush of everything
// still buffered. The final flush is bounded by ShutdownTimeout. Close is
// idempotent.
func (s *Sink) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	<-s.done
}

// Stats returns current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Enqueued:  s.queue.enqueued.Load(),
		Dropped:   s.queue.dropped.Load(),
		Batches:   s.engine.batches.Load(),
		Delivered: s.engine.delivered.Load(),
		Retries:   s.engine.retries.Load(),
		Failures:  s.engine.failures.Load(),
		Degraded:  s.degraded.Load(),
	}
}

// worker is the only goroutine touching the store. It accumulates events and
// flushes when a batch fills or the period elapses, whichever first. The
// first flush uses a shortened interval; see eagerFirstFlush.
func (s *Sink) worker(ctx context.Context) {
	defer close(s.done)

	limit := s.opts.BatchPostingLimit
	first := s.opts.Period
	if first > eagerFirstFlush {
		first = eagerFirstFlush
	}
	timer := time.NewTimer(first)
	defer timer.Stop()

	var pending []*LogEvent
	flush := func(flushCtx context.Context) {
		if len(pending) == 0 {
			return
		}
		s.engine.ship(flushCtx, pending)
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			s.finalFlush(pending)
			return
		case e := <-s.queue.ch:
			pending = append(pending, e)
			pending = s.queue.drainInto(pending, limit)
			if len(pending) >= limit {
				flush(ctx)
				resetTimer(timer, s.opts.Period)
			}
		case <-timer.C:
			flush(ctx)
			timer.Reset(s.opts.Period)
		}
	}
}

// finalFlush drains whatever is still queued and ships it batch by batch,
// bounded by ShutdownTimeout so shutdown cannot hang on a slow store.
func (s *Sink) finalFlush(pending []*LogEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	limit := s.opts.BatchPostingLimit
	for {
		pending = s.queue.drainInto(pending, limit)
		if len(pending) == 0 {
			return
		}
		s.engine.ship(ctx, pending)
		drained := len(pending) < limit // queue had nothing more to give
		pending = nil
		if drained || ctx.Err() != nil {
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
