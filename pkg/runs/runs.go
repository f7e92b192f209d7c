// Package runs implements the Run Index facade (spec §4.5 "Run Index"):
// create_run/get_run/list_runs/delete_run over a name<->id mapping, with
// the well-known "default" run pre-created and protected from deletion.
//
// Grounded on the teacher's GenerateKey (pkg/storage/engine.go: a
// uuid.NewV7 time-ordered id) for run id allocation, generalized from a
// single implicit "the database" scope into the named, creatable/
// deletable run namespace this engine's flat keyspace partitions on.
package runs

import (
	"sort"

	"github.com/google/uuid"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// DefaultRunName is the name of the run every fresh or recovered engine
// agrees on without persisting a prior creation (spec §4.5, SPEC_FULL
// §E.1).
const DefaultRunName = "default"

// DefaultRunID is fixed so a fresh engine and one recovering from disk
// compute the same id for the default run byte-for-byte, rather than
// minting a new random uuid on every open.
const DefaultRunID = "00000000-0000-0000-0000-000000000001"

// Run is one entry of the run index.
type Run struct {
	ID          string
	Name        string
	CreatedAtUs int64
}

// Index is a stateless facade over a txn.Manager. Run metadata lives in
// the same flat keyspace as everything else, tagged keyspace.TagRunMeta,
// so it is covered by the same snapshot/durability/compaction machinery
// as user data.
type Index struct {
	mgr *txn.Manager
}

func New(mgr *txn.Manager) *Index { return &Index{mgr: mgr} }

func nameKey(name string) []byte {
	return keyspace.Build("", keyspace.TagRunMeta, "name/"+name)
}

func idKey(id string) []byte {
	return keyspace.Build("", keyspace.TagRunMeta, "id/"+id)
}

func idPrefix() []byte {
	return keyspace.Build("", keyspace.TagRunMeta, "id/")
}

// EnsureDefault creates the well-known default run if the persisted run
// map does not already have one (idempotent; safe to call on every
// Engine.Open per SPEC_FULL §E.1).
func (idx *Index) EnsureDefault(nowUs int64) error {
	_, err := txn.Retry(idx.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		_, ok, err := t.Get(idKey(DefaultRunID))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		meta := values.Object([]values.ObjectField{
			{Key: "name", Value: values.String(DefaultRunName)},
			{Key: "created_at", Value: values.Int(nowUs)},
		})
		if err := t.Put(idKey(DefaultRunID), values.Encode(meta), 0); err != nil {
			return err
		}
		return t.Put(nameKey(DefaultRunName), []byte(DefaultRunID), 0)
	})
	return err
}

// CreateRun allocates a new time-ordered uuid v7 id for name and
// registers the name->id mapping, failing with RunExists if name is
// already taken.
func (idx *Index) CreateRun(name string, nowUs int64) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", dberrors.Internal("run id generation failed: " + err.Error())
	}
	runID := id.String()

	_, err = txn.Retry(idx.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		nk := nameKey(name)
		if _, ok, gerr := t.Get(nk); gerr != nil {
			return gerr
		} else if ok {
			return dberrors.RunExists("run name already in use: " + name)
		}
		t.RequireAbsent(nk)
		meta := values.Object([]values.ObjectField{
			{Key: "name", Value: values.String(name)},
			{Key: "created_at", Value: values.Int(nowUs)},
		})
		if err := t.Put(idKey(runID), values.Encode(meta), 0); err != nil {
			return err
		}
		return t.Put(nk, []byte(runID), 0)
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun resolves nameOrID to a Run, trying it as an id first (ids are
// uuid strings, which never collide with a user-chosen run name because
// CreateRun always mints its own id rather than accepting one).
func (idx *Index) GetRun(nameOrID string) (Run, bool, error) {
	t := idx.mgr.Begin()
	defer t.Rollback()

	if run, ok, err := idx.lookupByID(t, nameOrID); err != nil || ok {
		return run, ok, err
	}

	rawID, ok, err := t.Get(nameKey(nameOrID))
	if err != nil || !ok {
		return Run{}, false, err
	}
	return idx.lookupByID(t, string(rawID))
}

func (idx *Index) lookupByID(t *txn.Txn, id string) (Run, bool, error) {
	raw, ok, err := t.Get(idKey(id))
	if err != nil || !ok {
		return Run{}, false, err
	}
	meta, err := values.Decode(raw)
	if err != nil {
		return Run{}, false, err
	}
	nameVal, _ := meta.Get("name")
	name, _ := nameVal.AsString()
	createdVal, _ := meta.Get("created_at")
	created, _ := createdVal.AsInt()
	return Run{ID: id, Name: name, CreatedAtUs: created}, true, nil
}

// ListRuns returns every registered run, ordered by id.
func (idx *Index) ListRuns() ([]Run, error) {
	t := idx.mgr.Begin()
	defer t.Rollback()

	prefix := idPrefix()
	var runs []Run
	t.Store().ScanPrefix(prefix, t.Watermark(), t.NowMicros(), func(flatKey []byte, e mvstore.Entry) bool {
		meta, err := values.Decode(e.Value)
		if err != nil {
			return true
		}
		id := string(flatKey[len(prefix):])
		nameVal, _ := meta.Get("name")
		name, _ := nameVal.AsString()
		createdVal, _ := meta.Get("created_at")
		created, _ := createdVal.AsInt()
		runs = append(runs, Run{ID: id, Name: name, CreatedAtUs: created})
		return true
	})
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

// DeleteRun removes id's run index entry. The default run is protected
// from deletion (spec §4.5 "the default run is pre-created and
// protected from deletion"); this does not delete the run's data, only
// its index entry — data cleanup is the caller's (pkg/engine's)
// responsibility, matching the teacher's own separation between
// metadata bookkeeping and heap/index storage.
func (idx *Index) DeleteRun(id string) error {
	if id == DefaultRunID {
		return dberrors.RunClosed("the default run cannot be deleted")
	}
	_, err := txn.Retry(idx.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		raw, ok, err := t.Get(idKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return dberrors.RunNotFound("run does not exist: " + id)
		}
		meta, err := values.Decode(raw)
		if err != nil {
			return err
		}
		nameVal, _ := meta.Get("name")
		name, _ := nameVal.AsString()
		if err := t.Delete(idKey(id)); err != nil {
			return err
		}
		return t.Delete(nameKey(name))
	})
	return err
}
