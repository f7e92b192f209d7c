// Package jsondoc implements the JSON Document Store facade (spec §4.5
// "JSON Store"): documents keyed by doc id, addressed internally by
// dot-separated path, with document-level versioning — every
// modification, at any path depth, rewrites and re-versions the whole
// document as one store entry.
//
// Grounded on the teacher's facade-over-transaction pattern
// (StorageEngine.Put/Get auto-committing outside an explicit
// transaction) and its pkg/storage/bson.go JSON ingestion path, adapted
// from flat typed rows into a values.Value document tree addressed by
// path.
package jsondoc

import (
	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// Store is a stateless facade over a txn.Manager.
type Store struct {
	mgr       *txn.Manager
	maxKeyLen int
}

func New(mgr *txn.Manager, maxKeyBytes int) *Store {
	if maxKeyBytes <= 0 {
		maxKeyBytes = keyspace.MaxKeyBytes
	}
	return &Store{mgr: mgr, maxKeyLen: maxKeyBytes}
}

func (s *Store) buildKey(runID, docID string) ([]byte, error) {
	if err := keyspace.Validate(docID, s.maxKeyLen); err != nil {
		return nil, err
	}
	return keyspace.Build(runID, keyspace.TagJSON, docID), nil
}

// Create ingests jsonText as a new document under docID, failing with
// Conflict if a document with that id already exists.
func (s *Store) Create(runID, docID string, jsonText []byte) (uint64, error) {
	flatKey, err := s.buildKey(runID, docID)
	if err != nil {
		return 0, err
	}
	doc, err := parseJSONDocument(jsonText)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		t.RequireAbsent(flatKey)
		return t.Put(flatKey, values.Encode(doc), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Get returns the value at path within docID, plus the document-level
// version (spec: "reads return the document-level version regardless of
// path depth"). The empty path returns the whole document.
func (s *Store) Get(runID, docID, path string) (values.Value, uint64, bool, error) {
	flatKey, err := s.buildKey(runID, docID)
	if err != nil {
		return values.Null(), 0, false, err
	}
	t := s.mgr.Begin()
	defer t.Rollback()

	raw, ok, err := t.Get(flatKey)
	if err != nil || !ok {
		return values.Null(), 0, false, err
	}
	doc, err := values.Decode(raw)
	if err != nil {
		return values.Null(), 0, false, err
	}
	v, found := pathGet(doc, path)
	if !found {
		return values.Null(), 0, false, nil
	}
	return v, t.Store().HeadVersion(flatKey), true, nil
}

// Set writes newValue at path within docID, creating intermediate
// objects as needed, and bumps the document's version.
func (s *Store) Set(runID, docID, path string, newValue values.Value) (uint64, error) {
	flatKey, err := s.buildKey(runID, docID)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		doc, err := s.loadOrEmpty(t, flatKey)
		if err != nil {
			return err
		}
		updated, err := pathSet(doc, path, newValue)
		if err != nil {
			return err
		}
		return t.Put(flatKey, values.Encode(updated), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Delete removes path within docID, bumping the document's version.
// Deleting a path that does not exist is a no-op, not an error.
func (s *Store) Delete(runID, docID, path string) (uint64, error) {
	flatKey, err := s.buildKey(runID, docID)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		raw, ok, err := t.Get(flatKey)
		if err != nil {
			return err
		}
		if !ok {
			return dberrors.NotFound("document does not exist")
		}
		doc, err := values.Decode(raw)
		if err != nil {
			return err
		}
		updated, err := pathDelete(doc, path)
		if err != nil {
			return err
		}
		return t.Put(flatKey, values.Encode(updated), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Merge deep-merges partial into the value at path within docID:
// object-into-object merges recursively, field by field; any other
// pairing replaces the existing value outright (spec §4.5).
func (s *Store) Merge(runID, docID, path string, partial values.Value) (uint64, error) {
	flatKey, err := s.buildKey(runID, docID)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		doc, err := s.loadOrEmpty(t, flatKey)
		if err != nil {
			return err
		}
		existing, _ := pathGet(doc, path)
		merged := deepMerge(existing, partial)
		updated, err := pathSet(doc, path, merged)
		if err != nil {
			return err
		}
		return t.Put(flatKey, values.Encode(updated), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

func (s *Store) loadOrEmpty(t *txn.Txn, flatKey []byte) (values.Value, error) {
	raw, ok, err := t.Get(flatKey)
	if err != nil {
		return values.Value{}, err
	}
	if !ok {
		return values.Object(nil), nil
	}
	return values.Decode(raw)
}
