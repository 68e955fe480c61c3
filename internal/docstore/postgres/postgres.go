// Package postgres implements the docstore capability on PostgreSQL:
// databases map to schemas, collections to jsonb tables, and remote
// procedures to plpgsql functions installed from embedded SQL assets. A
// catalog (docsink.collections / docsink.procedures, created by the tern
// migrations in internal/database) tracks what exists and with which TTL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/harborlog/docsink/internal/docstore"
)

//go:embed scripts/*.sql
var scriptsFS embed.FS

// retryHint is the wait suggested on transient refusals; Postgres has no
// retry-after header, so a fixed hint stands in for it.
const retryHint = 250 * time.Millisecond

// Store is a DocumentStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New wraps an existing pool. The pool's lifecycle stays with the caller.
func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// EnsureDatabase creates the schema standing in for the named database.
func (s *Store) EnsureDatabase(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident(name))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	return nil
}

// EnsureCollection creates the document table and registers it in the catalog
// with its container-level default TTL.
func (s *Store) EnsureCollection(ctx context.Context, db, name string, defaultTTL int) error {
	table := ident(db) + "." + ident(name)
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			partition_key text NOT NULL,
			body jsonb NOT NULL,
			ttl integer,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (partition_key)",
		ident(name+"_partition_key_idx"), table)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create partition key index: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO docsink.collections (schema_name, table_name, default_ttl)
		VALUES ($1, $2, $3)
		ON CONFLICT (schema_name, table_name) DO UPDATE SET default_ttl = EXCLUDED.default_ttl`,
		db, name, defaultTTL)
	if err != nil {
		return fmt.Errorf("register collection %s: %w", table, err)
	}
	return nil
}

// ProcedureSet renders the embedded SQL assets for the given collection,
// stamped with version. Procedure ids are collection-scoped function names.
func (s *Store) ProcedureSet(db, coll, version string) docstore.ProcedureSet {
	bulkID := coll + "_bulk_import"
	markerID := coll + "_bulk_import_version"
	return docstore.ProcedureSet{
		BulkImport: docstore.Procedure{
			ID:     bulkID,
			Source: renderScript("scripts/bulk_import.sql", db, coll, bulkID, version),
		},
		VersionMarker: docstore.Procedure{
			ID:     markerID,
			Source: renderScript("scripts/version_marker.sql", db, coll, markerID, version),
		},
	}
}

func renderScript(asset, db, coll, id, version string) string {
	raw, err := scriptsFS.ReadFile(asset)
	if err != nil {
		// Assets are compiled in; a miss is a build defect.
		panic(fmt.Sprintf("docstore/postgres: missing embedded script %s: %v", asset, err))
	}
	r := strings.NewReplacer(
		"{{schema}}", ident(db),
		"{{table}}", ident(coll),
		"{{id}}", ident(id),
		"{{version}}", strings.ReplaceAll(version, "'", "''"),
	)
	return r.Replace(string(raw))
}

// GetProcedure looks the procedure up in the catalog. Absent procedures
// return (nil, nil).
func (s *Store) GetProcedure(ctx context.Context, db, coll, id string) (*docstore.Procedure, error) {
	var source string
	err := s.pool.QueryRow(ctx, `
		SELECT source FROM docsink.procedures
		WHERE schema_name = $1 AND table_name = $2 AND id = $3`,
		db, coll, id).Scan(&source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query procedure %s: %w", id, err)
	}
	return &docstore.Procedure{ID: id, Source: source}, nil
}

// CreateProcedure installs the function and records it in the catalog, in one
// transaction so the catalog never points at a function that does not exist.
func (s *Store) CreateProcedure(ctx context.Context, db, coll string, p docstore.Procedure) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, p.Source); err != nil {
		return fmt.Errorf("install procedure %s: %w", p.ID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO docsink.procedures (schema_name, table_name, id, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (schema_name, table_name, id) DO UPDATE
		SET source = EXCLUDED.source, installed_at = now()`,
		db, coll, p.ID, p.Source)
	if err != nil {
		return fmt.Errorf("register procedure %s: %w", p.ID, err)
	}
	return tx.Commit(ctx)
}

// DeleteProcedure drops the function and its catalog row. Dropping an absent
// procedure is not an error.
func (s *Store) DeleteProcedure(ctx context.Context, db, coll, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP FUNCTION IF EXISTS "+ident(db)+"."+ident(id)); err != nil {
		return fmt.Errorf("drop procedure %s: %w", id, err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM docsink.procedures
		WHERE schema_name = $1 AND table_name = $2 AND id = $3`,
		db, coll, id)
	if err != nil {
		return fmt.Errorf("deregister procedure %s: %w", id, err)
	}
	return tx.Commit(ctx)
}

// ExecProcedure calls the installed function. Document-shaped arguments
// (maps, slices, structs) are serialized to JSON; any call carrying arguments
// takes the partition key as its final parameter. The outcome is classified
// into the tagged result the sink switches on.
func (s *Store) ExecProcedure(ctx context.Context, db, coll, id, partitionKey string, args ...any) docstore.ExecResult {
	params, err := execParams(partitionKey, args)
	if err != nil {
		return docstore.Failed(fmt.Errorf("encode argument for %s: %w", id, err))
	}

	placeholders := make([]string, len(params))
	for i := range params {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("SELECT %s.%s(%s)", ident(db), ident(id), strings.Join(placeholders, ", "))

	var out any
	if err := s.pool.QueryRow(ctx, query, params...).Scan(&out); err != nil {
		return classify(err)
	}
	switch v := out.(type) {
	case int32:
		return docstore.Ok(int(v))
	case int64:
		return docstore.Ok(int(v))
	case string:
		return docstore.OkText(v)
	case nil:
		return docstore.Ok(0)
	default:
		return docstore.OkText(fmt.Sprint(v))
	}
}

// execParams assembles the positional parameters for a procedure call. Each
// composite argument becomes JSON, and the partition key rides along as the
// final parameter on every call that has arguments, empty or not, so the
// arity always matches the installed function. Zero-argument procedures take
// no key.
func execParams(partitionKey string, args []any) ([]any, error) {
	params := make([]any, 0, len(args)+1)
	for _, a := range args {
		v, err := encodeArg(a)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	if len(args) > 0 {
		params = append(params, partitionKey)
	}
	return params, nil
}

// encodeArg turns composite values into JSON bytes; scalars pass through.
func encodeArg(a any) (any, error) {
	if a == nil {
		return nil, nil
	}
	switch reflect.TypeOf(a).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return a, nil
	}
}

// classify folds a pgx error into the tagged result. SQLSTATE class 53
// (insufficient resources) and serialization/deadlock failures are the
// Postgres shape of rate limiting: the work may succeed shortly, so the
// caller gets a retry hint. Everything else is terminal for the batch.
func classify(err error) docstore.ExecResult {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientCode(pgErr.Code) {
		return docstore.RateLimited(retryHint)
	}
	return docstore.Failed(err)
}

func transientCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "53"): // insufficient_resources family
		return true
	case code == "40001", code == "40P01", code == "55P03":
		return true
	}
	return false
}

// ident quotes a SQL identifier.
func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
