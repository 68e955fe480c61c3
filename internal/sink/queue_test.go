package sink

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsNewestOnOverflow(t *testing.T) {
	q := newBatchQueue(10, NopDiagnostics())

	for i := 0; i < 10; i++ {
		require.True(t, q.enqueue(&LogEvent{Message: fmt.Sprintf("m%d", i)}))
	}
	assert.False(t, q.enqueue(&LogEvent{Message: "overflow"}), "event beyond capacity is dropped")

	assert.Equal(t, 10, len(q.ch), "buffered count stays at the limit")
	assert.Equal(t, uint64(1), q.dropped.Load())
	assert.Equal(t, uint64(10), q.enqueued.Load())

	// Oldest events are the ones retained, in arrival order.
	first := <-q.ch
	assert.Equal(t, "m0", first.Message)
}

func TestDrainIntoRespectsLimit(t *testing.T) {
	q := newBatchQueue(10, NopDiagnostics())
	for i := 0; i < 7; i++ {
		q.enqueue(&LogEvent{Message: fmt.Sprintf("m%d", i)})
	}

	batch := q.drainInto(nil, 5)
	require.Len(t, batch, 5)
	for i, e := range batch {
		assert.Equal(t, fmt.Sprintf("m%d", i), e.Message)
	}

	rest := q.drainInto(nil, 5)
	assert.Len(t, rest, 2, "drain never blocks waiting for more")
}

func TestOverflowDiagnosticReportedOnce(t *testing.T) {
	diag := &recordingDiag{}
	q := newBatchQueue(1, diag)
	q.enqueue(&LogEvent{Message: "kept"})
	q.enqueue(&LogEvent{Message: "dropped-1"})
	q.enqueue(&LogEvent{Message: "dropped-2"})

	assert.Equal(t, uint64(2), q.dropped.Load())
	assert.Len(t, diag.messages, 1, "only the first drop is reported")
}
