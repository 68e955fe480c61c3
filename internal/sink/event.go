package sink

import "time"

// Severity levels mirror the usual structured-logging ladder. The sink does
// not filter on level; it ships whatever it is handed.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelFatal   = "fatal"
)

// LogEvent is one structured log event handed to the sink. The sink treats it
// as read-only; producers must not mutate it after Emit.
type LogEvent struct {
	Timestamp  time.Time
	Level      string
	Message    string         // message template as emitted by the producer
	Properties map[string]any // named properties, values may be nested
	Exception  string         // rendered error/stack text, empty if none
}
