package sink

import (
	"context"
	"fmt"

	"github.com/harborlog/docsink/internal/docstore"
)

// schemaManager performs the one-time, best-effort remote setup: database,
// collection with per-document TTL enabled, and the version-stamped procedure
// pair. It runs once, synchronously, at sink construction.
type schemaManager struct {
	store docstore.DocumentStore
	opts  Options
	procs docstore.ProcedureSet
	diag  Diagnostics
}

func newSchemaManager(store docstore.DocumentStore, opts Options) *schemaManager {
	return &schemaManager{
		store: store,
		opts:  opts,
		procs: store.ProcedureSet(opts.Database, opts.Collection, Version),
		diag:  opts.Diagnostics,
	}
}

// setup provisions everything the delivery path depends on. Any error leaves
// the sink degraded rather than unconstructed: the caller logs the error and
// carries on, and deliveries fail per-batch until the schema exists.
func (m *schemaManager) setup(ctx context.Context) error {
	if err := m.store.EnsureDatabase(ctx, m.opts.Database); err != nil {
		return fmt.Errorf("ensure database %q: %w", m.opts.Database, err)
	}
	// Container-level TTL is set to the respect-per-document sentinel so the
	// ttl field on individual documents takes effect.
	if err := m.store.EnsureCollection(ctx, m.opts.Database, m.opts.Collection, docstore.TTLRespectPerDocument); err != nil {
		return fmt.Errorf("ensure collection %q: %w", m.opts.Collection, err)
	}
	return m.ensureProcedures(ctx)
}

// ensureProcedures installs the bulk-import and version-marker procedures,
// replacing both when the remote version marker disagrees with this release.
func (m *schemaManager) ensureProcedures(ctx context.Context) error {
	db, coll := m.opts.Database, m.opts.Collection

	marker, err := m.store.GetProcedure(ctx, db, coll, m.procs.VersionMarker.ID)
	if err != nil {
		return fmt.Errorf("query version marker: %w", err)
	}

	if marker != nil {
		res := m.store.ExecProcedure(ctx, db, coll, m.procs.VersionMarker.ID, "")
		if res.Status == docstore.StatusOK && res.Text == Version {
			return nil
		}
		// Stale or unreadable: drop both procedures together so a partial
		// pair never survives an upgrade.
		m.diag.Printf("docsink: replacing remote procedures (installed %q, running %s)", res.Text, Version)
		if err := m.store.DeleteProcedure(ctx, db, coll, m.procs.BulkImport.ID); err != nil {
			return fmt.Errorf("delete stale bulk import: %w", err)
		}
		if err := m.store.DeleteProcedure(ctx, db, coll, m.procs.VersionMarker.ID); err != nil {
			return fmt.Errorf("delete stale version marker: %w", err)
		}
	}

	if err := m.store.CreateProcedure(ctx, db, coll, m.procs.BulkImport); err != nil {
		return fmt.Errorf("create bulk import: %w", err)
	}
	if err := m.store.CreateProcedure(ctx, db, coll, m.procs.VersionMarker); err != nil {
		return fmt.Errorf("create version marker: %w", err)
	}
	return nil
}
