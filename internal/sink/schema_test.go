package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlog/docsink/internal/docstore"
)

func TestSetupProvisionsFreshSchema(t *testing.T) {
	store := newFakeStore()
	mgr := newSchemaManager(store, testOptions())

	require.NoError(t, mgr.setup(context.Background()))

	assert.Equal(t, []string{"logs"}, store.databases)
	assert.Equal(t, []string{"logs/entries"}, store.collections)
	assert.Equal(t, []string{fakeBulkID, fakeMarkerID}, store.created)
	assert.Empty(t, store.deleted)
}

func TestSetupReplacesStaleProcedures(t *testing.T) {
	store := newFakeStore()
	stale := store.ProcedureSet("logs", "entries", "0.9.0")
	store.procs[stale.BulkImport.ID] = stale.BulkImport
	store.procs[stale.VersionMarker.ID] = stale.VersionMarker

	mgr := newSchemaManager(store, testOptions())
	require.NoError(t, mgr.setup(context.Background()))

	assert.Equal(t, []string{fakeBulkID, fakeMarkerID}, store.deleted, "both procedures dropped together")
	assert.Equal(t, []string{fakeBulkID, fakeMarkerID}, store.created)
	assert.Equal(t, "bulk "+Version, store.procs[fakeBulkID].Source)
}

func TestSetupLeavesMatchingVersionAlone(t *testing.T) {
	store := newFakeStore()
	current := store.ProcedureSet("logs", "entries", Version)
	store.procs[current.BulkImport.ID] = current.BulkImport
	store.procs[current.VersionMarker.ID] = current.VersionMarker

	mgr := newSchemaManager(store, testOptions())
	require.NoError(t, mgr.setup(context.Background()))

	assert.Empty(t, store.deleted)
	assert.Empty(t, store.created)
}

func TestSetupFailureLeavesSinkDegradedButUsable(t *testing.T) {
	store := newFakeStore()
	store.setupErr = errors.New("provisioning refused")

	s, err := New(context.Background(), store, testOptions())
	require.NoError(t, err, "schema failures must not fail construction")
	defer s.Close()

	assert.True(t, s.Stats().Degraded)

	// The sink still accepts events; deliveries simply go through the store
	// as usual (here the fake accepts them).
	s.Emit(&LogEvent{Message: "still alive"})
	assert.Equal(t, uint64(1), s.Stats().Enqueued)
}

func TestSetupRecreatesWhenMarkerUnreadable(t *testing.T) {
	store := newFakeStore()
	// Marker present in the catalog but its execution reports a garbage
	// version; the pair must be replaced.
	store.procs[fakeMarkerID] = docstore.Procedure{ID: fakeMarkerID, Source: "version ???"}

	mgr := newSchemaManager(store, testOptions())
	require.NoError(t, mgr.setup(context.Background()))

	assert.Contains(t, store.deleted, fakeMarkerID)
	assert.Equal(t, "version "+Version, store.procs[fakeMarkerID].Source)
}
