package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document field names injected by the sink. The partition-key field name
// comes from Options; everything here is fixed.
const (
	fieldID        = "id"
	fieldLevel     = "Level"
	fieldMessage   = "Message"
	fieldException = "Exception"
	fieldTTL       = "ttl"
)

// documentBuilder turns LogEvents into the flat field maps shipped to the
// store. One builder serves the whole sink; it holds only configuration.
type documentBuilder struct {
	opts Options
	diag Diagnostics
}

// build flattens one event into a shipped document and injects the id,
// partition-key and ttl fields. Injection is first-write-wins: a user
// property carrying one of those names is preserved verbatim. Field
// serialization failures degrade that one field to its rendered string; they
// never abort the document.
func (b *documentBuilder) build(e *LogEvent, partitionKey string) map[string]any {
	doc := make(map[string]any, len(e.Properties)+6)

	ts := e.Timestamp
	if b.opts.UTC {
		ts = ts.UTC()
	}
	doc[b.opts.TimestampField] = ts.Format(time.RFC3339Nano)
	doc[fieldLevel] = e.Level
	doc[fieldMessage] = e.Message
	if e.Exception != "" {
		doc[fieldException] = e.Exception
	}

	for name, value := range e.Properties {
		if _, taken := doc[name]; taken {
			continue
		}
		doc[name] = b.sanitize(name, value)
	}

	if _, ok := doc[fieldID]; !ok {
		doc[fieldID] = uuid.NewString()
	}
	if _, ok := doc[b.opts.PartitionKeyField]; !ok {
		doc[b.opts.PartitionKeyField] = partitionKey
	}
	if ttl, enabled := b.opts.ttlSeconds(); enabled {
		if _, ok := doc[fieldTTL]; !ok {
			doc[fieldTTL] = ttl
		}
	}
	return doc
}

// sanitize verifies a property value survives JSON serialization. Values that
// do not (channels, functions, cyclic structures) are replaced with a
// placeholder so the rest of the document still ships.
func (b *documentBuilder) sanitize(name string, value any) any {
	switch value.(type) {
	case nil, bool, string, int, int32, int64, float32, float64:
		return value
	}
	if _, err := json.Marshal(value); err != nil {
		b.diag.Printf("docsink: property %q is not serializable, shipping rendered value: %v", name, err)
		return renderValue(value, err)
	}
	return value
}

// renderValue stands in for a value json.Marshal rejected. The value itself
// is never formatted: fmt has no cycle detection, so printing a
// self-referential structure overflows the stack. Only the value's type and
// the marshal error appear in the placeholder.
func renderValue(value any, err error) string {
	if e, ok := value.(error); ok {
		return e.Error()
	}
	return fmt.Sprintf("%T (unserializable: %v)", value, err)
}
