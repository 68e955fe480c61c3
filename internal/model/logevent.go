package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/harborlog/docsink/internal/sink"
)

// LogEvent is the validated wire shape for an ingested log event.
// Ingest payloads are JSON with these fields; message is required.
type LogEvent struct {
	Timestamp  string         `json:"timestamp"`            // ISO8601 or Unix ms; empty means now
	Level      string         `json:"level"`                // e.g. debug, info, warning, error
	Message    string         `json:"message"`              // required
	Properties map[string]any `json:"properties,omitempty"` // optional named properties
	Exception  string         `json:"exception,omitempty"`  // rendered error text
}

// ToSink converts the wire event into the sink's event type.
func (e LogEvent) ToSink() (*sink.LogEvent, error) {
	if e.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	ts, err := parseTimestamp(e.Timestamp)
	if err != nil {
		return nil, err
	}
	level := e.Level
	if level == "" {
		level = sink.LevelInfo
	}
	return &sink.LogEvent{
		Timestamp:  ts,
		Level:      level,
		Message:    e.Message,
		Properties: e.Properties,
		Exception:  e.Exception,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
