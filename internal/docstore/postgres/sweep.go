package postgres

import (
	"context"
	"fmt"
)

// SweepExpired deletes expired documents across every registered collection
// whose TTL feature is enabled. A document's effective TTL is its own ttl
// field, falling back to the collection default; non-positive effective TTL
// (including the -1 infinite sentinel) never expires. Returns rows deleted.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT schema_name, table_name, default_ttl
		FROM docsink.collections
		WHERE default_ttl <> 0`)
	if err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}

	type target struct {
		schema     string
		table      string
		defaultTTL int
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.schema, &t.table, &t.defaultTTL); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan collection: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}

	var deleted int64
	for _, t := range targets {
		stmt := fmt.Sprintf(`
			DELETE FROM %s.%s
			WHERE COALESCE(ttl, $1) > 0
			  AND created_at + make_interval(secs => COALESCE(ttl, $1)) < now()`,
			ident(t.schema), ident(t.table))
		tag, err := s.pool.Exec(ctx, stmt, t.defaultTTL)
		if err != nil {
			return deleted, fmt.Errorf("sweep %s.%s: %w", t.schema, t.table, err)
		}
		if n := tag.RowsAffected(); n > 0 {
			deleted += n
			s.log.Debug().Str("collection", t.schema+"."+t.table).Int64("deleted", n).Msg("expired documents removed")
		}
	}
	return deleted, nil
}
