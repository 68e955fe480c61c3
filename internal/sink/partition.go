package sink

// PartitionKeyProvider derives the partition key for a log event. It must be
// pure and total: no side effects, no panic for a well-formed event, and a
// nil event yields an empty key.
type PartitionKeyProvider func(*LogEvent) string

// DefaultPartitionKeyLayout is the date layout used by the default provider.
const DefaultPartitionKeyLayout = "2006-01-02"

// TimestampPartitionKey returns a provider keying on the event's UTC
// timestamp formatted with layout. Events emitted the same day land on the
// same partition.
func TimestampPartitionKey(layout string) PartitionKeyProvider {
	return func(e *LogEvent) string {
		if e == nil {
			return ""
		}
		return e.Timestamp.UTC().Format(layout)
	}
}

func defaultPartitionKeyProvider() PartitionKeyProvider {
	return TimestampPartitionKey(DefaultPartitionKeyLayout)
}
