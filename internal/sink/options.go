package sink

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// TTLInfinite marks a per-document time-to-live of "never expire" while the
// container-level TTL feature stays enabled for other documents.
const TTLInfinite = -1

// maxTTLSeconds is the store's ceiling for a ttl field (about 24855 days).
const maxTTLSeconds = math.MaxInt32

// Default numeric options; callers start from DefaultOptions and override.
const (
	DefaultBatchPostingLimit = 50
	DefaultQueueLimit        = 10000
	DefaultPeriod            = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultPartitionKeyField = "UtcDate"
	DefaultTimestampField    = "Timestamp"
)

// Options configures a Sink. Validate is called once at construction, before
// any network I/O; a Sink never starts with an invalid configuration.
type Options struct {
	// Endpoint locates the document store (connection URL or host).
	Endpoint string `validate:"required"`
	// Key is the credential for the store. May be empty for local stores.
	Key string

	Database   string `validate:"required"`
	Collection string `validate:"required"`

	// PartitionKeyField is the document field carrying the partition key.
	PartitionKeyField string
	// PartitionKeyProvider derives the key; defaults to the UTC-date provider.
	PartitionKeyProvider PartitionKeyProvider

	// BatchPostingLimit caps documents per bulk-import call.
	BatchPostingLimit int `validate:"min=1,max=1000"`
	// QueueLimit bounds the in-memory event queue; overflow drops events.
	QueueLimit int `validate:"min=5000,max=25000"`
	// Period is the wall-clock flush interval.
	Period time.Duration

	// TimestampField names the document field for the event timestamp.
	TimestampField string
	// UTC normalizes event timestamps to UTC before serialization.
	UTC bool

	// TimeToLive enables per-document expiry: nil disables the ttl field
	// entirely, a negative value ships the infinite sentinel, anything else
	// is normalized to whole seconds.
	TimeToLive *time.Duration

	// DisableTLS turns off transport security; only for local testing.
	DisableTLS bool

	// ShutdownTimeout bounds the final flush when the sink closes.
	ShutdownTimeout time.Duration

	// Diagnostics receives the sink's own operational messages. Defaults to
	// a zerolog console writer on stderr.
	Diagnostics Diagnostics
}

// DefaultOptions returns Options with the standard limits filled in. Endpoint,
// Database and Collection must still be set by the caller.
func DefaultOptions() Options {
	return Options{
		PartitionKeyField: DefaultPartitionKeyField,
		BatchPostingLimit: DefaultBatchPostingLimit,
		QueueLimit:        DefaultQueueLimit,
		Period:            DefaultPeriod,
		TimestampField:    DefaultTimestampField,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// Validate checks all numeric bounds and cross-field constraints. It mutates
// nothing; callers get the same Options back from New regardless of outcome.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("sink options: %w", err)
	}
	if o.QueueLimit < o.BatchPostingLimit {
		return fmt.Errorf("sink options: queue limit %d below batch posting limit %d", o.QueueLimit, o.BatchPostingLimit)
	}
	if o.Period <= 0 {
		return fmt.Errorf("sink options: flush period must be positive, got %v", o.Period)
	}
	if o.TimeToLive != nil && *o.TimeToLive > 0 {
		if secs := int64(o.TimeToLive.Seconds()); secs > maxTTLSeconds {
			return fmt.Errorf("sink options: time-to-live %v exceeds the %d second ceiling", *o.TimeToLive, int64(maxTTLSeconds))
		}
	}
	if o.ShutdownTimeout < 0 {
		return fmt.Errorf("sink options: shutdown timeout must not be negative")
	}
	return nil
}

// ttlSeconds normalizes the configured time-to-live: (0, false) when disabled,
// otherwise whole non-negative seconds or the infinite sentinel.
func (o Options) ttlSeconds() (int, bool) {
	if o.TimeToLive == nil {
		return 0, false
	}
	if *o.TimeToLive < 0 {
		return TTLInfinite, true
	}
	secs := int(o.TimeToLive.Seconds())
	if secs <= 0 {
		return 0, false
	}
	return secs, true
}

// withDefaults fills the non-numeric gaps callers commonly leave open.
// Numeric limits are never defaulted here: an out-of-range value must fail
// validation, not be silently corrected.
func (o Options) withDefaults() Options {
	if o.PartitionKeyField == "" {
		o.PartitionKeyField = DefaultPartitionKeyField
	}
	if o.TimestampField == "" {
		o.TimestampField = DefaultTimestampField
	}
	if o.PartitionKeyProvider == nil {
		o.PartitionKeyProvider = defaultPartitionKeyProvider()
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Diagnostics == nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		o.Diagnostics = NewZerologDiagnostics(log)
	}
	return o
}
