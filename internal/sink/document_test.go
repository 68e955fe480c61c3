package sink

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDiag captures diagnostic messages for assertions.
type recordingDiag struct {
	mu       sync.Mutex
	messages []string
}

func (d *recordingDiag) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, fmt.Sprintf(format, args...))
}

func newTestBuilder(mutate func(*Options)) *documentBuilder {
	opts := testOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return &documentBuilder{opts: opts, diag: opts.Diagnostics}
}

func TestBuildInjectsPartitionKeyWhenAbsent(t *testing.T) {
	b := newTestBuilder(nil)
	doc := b.build(&LogEvent{Timestamp: time.Now(), Message: "hello"}, "2026-03-14")
	assert.Equal(t, "2026-03-14", doc[DefaultPartitionKeyField])
}

func TestBuildPreservesUserPartitionKeyProperty(t *testing.T) {
	b := newTestBuilder(nil)
	doc := b.build(&LogEvent{
		Timestamp:  time.Now(),
		Message:    "hello",
		Properties: map[string]any{DefaultPartitionKeyField: "user-chosen"},
	}, "2026-03-14")
	assert.Equal(t, "user-chosen", doc[DefaultPartitionKeyField], "first write wins")
}

func TestBuildTTLInjection(t *testing.T) {
	t.Run("disabled means no ttl field", func(t *testing.T) {
		b := newTestBuilder(nil)
		doc := b.build(&LogEvent{Timestamp: time.Now(), Message: "x"}, "pk")
		_, present := doc[fieldTTL]
		assert.False(t, present)
	})

	t.Run("configured ttl ships in seconds", func(t *testing.T) {
		b := newTestBuilder(func(o *Options) {
			ttl := 5 * time.Minute
			o.TimeToLive = &ttl
		})
		doc := b.build(&LogEvent{Timestamp: time.Now(), Message: "x"}, "pk")
		assert.Equal(t, 300, doc[fieldTTL])
	})

	t.Run("negative ttl ships the infinite sentinel", func(t *testing.T) {
		b := newTestBuilder(func(o *Options) {
			ttl := -time.Second
			o.TimeToLive = &ttl
		})
		doc := b.build(&LogEvent{Timestamp: time.Now(), Message: "x"}, "pk")
		assert.Equal(t, TTLInfinite, doc[fieldTTL])
	})

	t.Run("event-supplied ttl wins", func(t *testing.T) {
		b := newTestBuilder(func(o *Options) {
			ttl := 5 * time.Minute
			o.TimeToLive = &ttl
		})
		doc := b.build(&LogEvent{
			Timestamp:  time.Now(),
			Message:    "x",
			Properties: map[string]any{fieldTTL: 60},
		}, "pk")
		assert.Equal(t, 60, doc[fieldTTL])
	})
}

func TestBuildTimestampUTCNormalization(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, loc)

	b := newTestBuilder(func(o *Options) { o.UTC = true })
	doc := b.build(&LogEvent{Timestamp: ts, Message: "x"}, "pk")
	assert.Equal(t, "2026-03-13T23:30:00Z", doc[DefaultTimestampField])

	b = newTestBuilder(nil)
	doc = b.build(&LogEvent{Timestamp: ts, Message: "x"}, "pk")
	assert.Equal(t, "2026-03-14T09:30:00+10:00", doc[DefaultTimestampField])
}

func TestBuildInjectsIDUnlessSupplied(t *testing.T) {
	b := newTestBuilder(nil)

	doc := b.build(&LogEvent{Timestamp: time.Now(), Message: "x"}, "pk")
	assert.NotEmpty(t, doc[fieldID])

	doc = b.build(&LogEvent{
		Timestamp:  time.Now(),
		Message:    "x",
		Properties: map[string]any{fieldID: "my-id"},
	}, "pk")
	assert.Equal(t, "my-id", doc[fieldID])
}

func TestBuildDegradesUnserializableProperty(t *testing.T) {
	diag := &recordingDiag{}
	b := newTestBuilder(func(o *Options) { o.Diagnostics = diag })

	doc := b.build(&LogEvent{
		Timestamp: time.Now(),
		Message:   "x",
		Properties: map[string]any{
			"bad":  make(chan int),
			"good": "fine",
		},
	}, "pk")

	require.Contains(t, doc, "bad")
	_, isString := doc["bad"].(string)
	assert.True(t, isString, "offending field degrades to its rendered value")
	assert.Equal(t, "fine", doc["good"], "the rest of the document still ships")
	assert.NotEmpty(t, diag.messages)
}

func TestBuildDegradesCyclicProperty(t *testing.T) {
	diag := &recordingDiag{}
	b := newTestBuilder(func(o *Options) { o.Diagnostics = diag })

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	doc := b.build(&LogEvent{
		Timestamp:  time.Now(),
		Message:    "x",
		Properties: map[string]any{"loop": cyclic},
	}, "pk")

	rendered, ok := doc["loop"].(string)
	require.True(t, ok, "cyclic field degrades to a placeholder string")
	assert.Contains(t, rendered, "map[string]interface {}")
	assert.NotEmpty(t, diag.messages)
}

func TestBuildCarriesExceptionAndLevel(t *testing.T) {
	b := newTestBuilder(nil)
	doc := b.build(&LogEvent{
		Timestamp: time.Now(),
		Level:     LevelError,
		Message:   "boom",
		Exception: "stack trace here",
	}, "pk")
	assert.Equal(t, LevelError, doc[fieldLevel])
	assert.Equal(t, "boom", doc[fieldMessage])
	assert.Equal(t, "stack trace here", doc[fieldException])
}
