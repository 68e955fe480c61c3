package sink

import "sync/atomic"

// batchQueue is the single shared structure between producers and the flush
// worker: a bounded channel with a non-blocking enqueue. When the channel is
// full the incoming event is dropped (drop-newest) so producers never wait on
// a slow store.
type batchQueue struct {
	ch       chan *LogEvent
	enqueued atomic.Uint64
	dropped  atomic.Uint64
	diag     Diagnostics
}

func newBatchQueue(limit int, diag Diagnostics) *batchQueue {
	return &batchQueue{
		ch:   make(chan *LogEvent, limit),
		diag: diag,
	}
}

// enqueue appends the event or drops it if the queue is at capacity. It never
// blocks and never fails with an error; overflow is counted and reported on
// the diagnostic channel.
func (q *batchQueue) enqueue(e *LogEvent) bool {
	select {
	case q.ch <- e:
		q.enqueued.Add(1)
		return true
	default:
		if q.dropped.Add(1) == 1 {
			q.diag.Printf("docsink: queue full (%d events), dropping incoming events; further drops are counted silently", cap(q.ch))
		}
		return false
	}
}

// drainInto moves immediately available events into pending, up to limit
// total, without blocking. Returns the grown slice.
func (q *batchQueue) drainInto(pending []*LogEvent, limit int) []*LogEvent {
	for len(pending) < limit {
		select {
		case e := <-q.ch:
			pending = append(pending, e)
		default:
			return pending
		}
	}
	return pending
}
