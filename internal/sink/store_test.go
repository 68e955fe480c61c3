package sink

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/harborlog/docsink/internal/docstore"
)

const (
	fakeBulkID   = "entries_bulk_import"
	fakeMarkerID = "entries_bulk_import_version"
)

type execCall struct {
	id           string
	partitionKey string
	docs         []map[string]any
}

// fakeStore is an in-memory DocumentStore recording every interaction.
// Results for bulk-import executions can be queued; the default is success.
type fakeStore struct {
	mu sync.Mutex

	databases   []string
	collections []string
	procs       map[string]docstore.Procedure
	created     []string
	deleted     []string

	setupErr    error // returned from EnsureDatabase when set
	bulkResults []docstore.ExecResult
	calls       []execCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{procs: make(map[string]docstore.Procedure)}
}

func (f *fakeStore) queue(results ...docstore.ExecResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkResults = append(f.bulkResults, results...)
}

func (f *fakeStore) bulkCalls() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]execCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeStore) EnsureDatabase(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setupErr != nil {
		return f.setupErr
	}
	f.databases = append(f.databases, name)
	return nil
}

func (f *fakeStore) EnsureCollection(_ context.Context, db, name string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = append(f.collections, db+"/"+name)
	return nil
}

func (f *fakeStore) ProcedureSet(_, coll, version string) docstore.ProcedureSet {
	return docstore.ProcedureSet{
		BulkImport:    docstore.Procedure{ID: coll + "_bulk_import", Source: "bulk " + version},
		VersionMarker: docstore.Procedure{ID: coll + "_bulk_import_version", Source: "version " + version},
	}
}

func (f *fakeStore) GetProcedure(_ context.Context, _, _, id string) (*docstore.Procedure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) CreateProcedure(_ context.Context, _, _ string, p docstore.Procedure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[p.ID] = p
	f.created = append(f.created, p.ID)
	return nil
}

func (f *fakeStore) DeleteProcedure(_ context.Context, _, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ExecProcedure(_ context.Context, _, _, id, partitionKey string, args ...any) docstore.ExecResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasSuffix(id, "_version") {
		p, ok := f.procs[id]
		if !ok {
			return docstore.Failed(errors.New("version marker not installed"))
		}
		return docstore.OkText(strings.TrimPrefix(p.Source, "version "))
	}

	call := execCall{id: id, partitionKey: partitionKey}
	if len(args) > 0 {
		if docs, ok := args[0].([]map[string]any); ok {
			call.docs = docs
		}
	}
	f.calls = append(f.calls, call)

	if len(f.bulkResults) > 0 {
		res := f.bulkResults[0]
		f.bulkResults = f.bulkResults[1:]
		return res
	}
	return docstore.Ok(len(call.docs))
}

// testOptions returns small, valid options wired to a silent diagnostic
// channel, suitable for direct engine construction in tests.
func testOptions() Options {
	o := DefaultOptions()
	o.Endpoint = "localhost:5432"
	o.Database = "logs"
	o.Collection = "entries"
	o.QueueLimit = 5000
	o.Diagnostics = NopDiagnostics()
	return o.withDefaults()
}
