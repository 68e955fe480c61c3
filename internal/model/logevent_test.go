package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlog/docsink/internal/sink"
)

func TestToSinkParsesRFC3339(t *testing.T) {
	e := LogEvent{Timestamp: "2026-03-14T09:30:00Z", Message: "hello", Level: "error"}
	ev, err := e.ToSink()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), ev.Timestamp.UTC())
	assert.Equal(t, "error", ev.Level)
}

func TestToSinkParsesUnixMillis(t *testing.T) {
	e := LogEvent{Timestamp: "1773480600000", Message: "hello"}
	ev, err := e.ToSink()
	require.NoError(t, err)
	assert.Equal(t, int64(1773480600000), ev.Timestamp.UnixMilli())
}

func TestToSinkDefaults(t *testing.T) {
	before := time.Now()
	ev, err := LogEvent{Message: "hello"}.ToSink()
	require.NoError(t, err)
	assert.Equal(t, sink.LevelInfo, ev.Level)
	assert.False(t, ev.Timestamp.Before(before))
}

func TestToSinkRejectsBadInput(t *testing.T) {
	_, err := LogEvent{Timestamp: "yesterday", Message: "hello"}.ToSink()
	assert.Error(t, err)

	_, err = LogEvent{Timestamp: "2026-03-14T09:30:00Z"}.ToSink()
	assert.Error(t, err, "message is required")
}
