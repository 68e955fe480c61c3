package sink

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Diagnostics is the one-way channel for the sink's own operational messages
// (setup failures, serialization trouble, dropped batches). Implementations
// must never panic or block for long; the sink calls it from hot paths.
type Diagnostics interface {
	Printf(format string, args ...any)
}

type zerologDiagnostics struct {
	log zerolog.Logger
}

// NewZerologDiagnostics adapts a zerolog logger into a Diagnostics channel.
// Messages are emitted at warn level since they always describe something
// going wrong inside the sink.
func NewZerologDiagnostics(log zerolog.Logger) Diagnostics {
	return &zerologDiagnostics{log: log}
}

func (d *zerologDiagnostics) Printf(format string, args ...any) {
	d.log.Warn().Msg(fmt.Sprintf(format, args...))
}

type nopDiagnostics struct{}

// NopDiagnostics discards all diagnostic output.
func NopDiagnostics() Diagnostics { return nopDiagnostics{} }

func (nopDiagnostics) Printf(string, ...any) {}
