// Package docstore defines the document-store capability the sink ships to.
// Any backend offering these operations is substitutable; the sink never
// inspects backend-specific error types, only the tagged ExecResult.
package docstore

import (
	"context"
	"time"
)

// TTLRespectPerDocument is the container-level time-to-live sentinel meaning
// "no default expiry, honor each document's own ttl field".
const TTLRespectPerDocument = -1

// Procedure is a server-side script installed by id. Source is opaque to the
// sink; the store supplies it in its native language via ProcedureSet.
type Procedure struct {
	ID     string
	Source string
}

// ProcedureSet is the pair of procedures the sink provisions: the bulk-import
// procedure and the version marker stamped with the sink release.
type ProcedureSet struct {
	BulkImport    Procedure
	VersionMarker Procedure
}

// Status tags an ExecResult.
type Status int

const (
	// StatusOK means the procedure ran and the batch is persisted.
	StatusOK Status = iota
	// StatusRateLimited means the store refused transiently; retry after
	// RetryAfter is worthwhile.
	StatusRateLimited
	// StatusFailed means a non-transient failure; the caller should not retry.
	StatusFailed
)

// ExecResult is the classified outcome of a procedure execution.
type ExecResult struct {
	Status     Status
	Inserted   int           // documents inserted, for the bulk-import procedure
	Text       string        // procedure text output (e.g. version marker value)
	RetryAfter time.Duration // suggested wait, set when Status is StatusRateLimited
	Err        error         // underlying cause, set when Status is StatusFailed
}

// Ok builds a success result with an inserted-document count.
func Ok(inserted int) ExecResult {
	return ExecResult{Status: StatusOK, Inserted: inserted}
}

// OkText builds a success result carrying text output.
func OkText(text string) ExecResult {
	return ExecResult{Status: StatusOK, Text: text}
}

// RateLimited builds a transient-refusal result with a retry hint.
func RateLimited(retryAfter time.Duration) ExecResult {
	return ExecResult{Status: StatusRateLimited, RetryAfter: retryAfter}
}

// Failed builds a non-retryable failure result.
func Failed(err error) ExecResult {
	return ExecResult{Status: StatusFailed, Err: err}
}

// DocumentStore is the outbound capability consumed by the sink: idempotent
// schema setup plus install/replace/execute of server-side procedures.
type DocumentStore interface {
	// EnsureDatabase creates the named database if it does not exist.
	EnsureDatabase(ctx context.Context, name string) error

	// EnsureCollection creates the named collection if it does not exist and
	// records its container-level default TTL (seconds, or
	// TTLRespectPerDocument).
	EnsureCollection(ctx context.Context, db, name string, defaultTTL int) error

	// ProcedureSet returns the store-native procedure pair for the given
	// collection, stamped with version.
	ProcedureSet(db, coll, version string) ProcedureSet

	// GetProcedure returns the installed procedure by id, or nil if absent.
	GetProcedure(ctx context.Context, db, coll, id string) (*Procedure, error)

	// CreateProcedure installs a procedure.
	CreateProcedure(ctx context.Context, db, coll string, p Procedure) error

	// DeleteProcedure removes a procedure by id. Removing an absent procedure
	// is not an error.
	DeleteProcedure(ctx context.Context, db, coll, id string) error

	// ExecProcedure runs an installed procedure scoped to partitionKey and
	// classifies the outcome. Calls that carry arguments receive the
	// partition key as their final parameter even when it is empty;
	// zero-argument procedures take none. Transport and backend failures are
	// folded into the result; it never panics.
	ExecProcedure(ctx context.Context, db, coll, id, partitionKey string, args ...any) ExecResult
}
