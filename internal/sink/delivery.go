package sink

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/harborlog/docsink/internal/docstore"
)

// rateLimitCushion is added on top of the store's suggested retry delay.
const rateLimitCushion = 10 * time.Millisecond

// errStillRateLimited marks a batch whose single retry was also refused.
var errStillRateLimited = errors.New("rate limited after retry")

// DeliveryOutcome reports what happened to one batch.
type DeliveryOutcome struct {
	Delivered bool
	Retried   bool // a rate-limited first attempt was retried
	Inserted  int  // documents the procedure reports inserted
	Err       error
}

// deliveryEngine drains batches and ships each one in a single bulk-import
// call scoped to the batch's partition key. Rate-limited calls are retried
// exactly once after the suggested delay; every other failure drops the
// batch.
type deliveryEngine struct {
	store   docstore.DocumentStore
	opts    Options
	builder *documentBuilder
	procID  string
	diag    Diagnostics

	// sleep is swappable so tests observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration)

	batches   atomic.Uint64
	delivered atomic.Uint64
	retries   atomic.Uint64
	failures  atomic.Uint64
}

func newDeliveryEngine(store docstore.DocumentStore, opts Options, procID string) *deliveryEngine {
	return &deliveryEngine{
		store:   store,
		opts:    opts,
		builder: &documentBuilder{opts: opts, diag: opts.Diagnostics},
		procID:  procID,
		diag:    opts.Diagnostics,
		sleep:   sleepContext,
	}
}

// ship delivers one non-empty batch. All documents are tagged with the
// partition key derived from the batch's first event, then sent as a single
// procedure argument.
func (d *deliveryEngine) ship(ctx context.Context, batch []*LogEvent) DeliveryOutcome {
	d.batches.Add(1)

	partitionKey := d.opts.PartitionKeyProvider(batch[0])
	docs := make([]map[string]any, 0, len(batch))
	for _, e := range batch {
		docs = append(docs, d.builder.build(e, partitionKey))
	}

	res := d.store.ExecProcedure(ctx, d.opts.Database, d.opts.Collection, d.procID, partitionKey, docs)
	outcome := DeliveryOutcome{}

	if res.Status == docstore.StatusRateLimited {
		outcome.Retried = true
		d.retries.Add(1)
		wait := res.RetryAfter + rateLimitCushion
		d.diag.Printf("docsink: rate limited, retrying batch of %d after %v", len(docs), wait)
		d.sleep(ctx, wait)
		res = d.store.ExecProcedure(ctx, d.opts.Database, d.opts.Collection, d.procID, partitionKey, docs)
	}

	switch res.Status {
	case docstore.StatusOK:
		outcome.Delivered = true
		outcome.Inserted = res.Inserted
		d.delivered.Add(uint64(len(docs)))
		if res.Inserted != len(docs) {
			d.diag.Printf("docsink: bulk import reported %d of %d documents inserted", res.Inserted, len(docs))
		}
	case docstore.StatusRateLimited:
		outcome.Err = errStillRateLimited
		d.failures.Add(1)
		d.diag.Printf("docsink: still rate limited after retry, dropping batch of %d", len(docs))
	default:
		outcome.Err = res.Err
		d.failures.Add(1)
		d.diag.Printf("docsink: batch of %d dropped: %v", len(docs), res.Err)
	}
	return outcome
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
