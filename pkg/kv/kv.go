// Package kv implements the versioned key/value facade (spec §4.5 "KV
// Store"). Grounded on the teacher's StorageEngine.Put/Get/Scan/Del,
// generalized from typed row keys over one table to values.Value over
// the flat (run, TagKV, user_key) keyspace, and from a single in-house
// row transaction to pkg/txn's general-purpose Txn.
package kv

import (
	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// Store is a stateless facade over a txn.Manager: every exported method
// is safe to call concurrently and from multiple runs.
type Store struct {
	mgr        *txn.Manager
	maxKeyLen  int
	maxValLen  int
}

// New wires a Store over mgr. maxKeyBytes/maxValueBytes of 0 fall back
// to keyspace.MaxKeyBytes and a generous default value ceiling
// (spec §6 configuration surface: max_key_bytes, max_value_bytes).
func New(mgr *txn.Manager, maxKeyBytes, maxValueBytes int) *Store {
	if maxKeyBytes <= 0 {
		maxKeyBytes = keyspace.MaxKeyBytes
	}
	if maxValueBytes <= 0 {
		maxValueBytes = 16 << 20 // 16MiB
	}
	return &Store{mgr: mgr, maxKeyLen: maxKeyBytes, maxValLen: maxValueBytes}
}

func (s *Store) buildKey(runID, userKey string) ([]byte, error) {
	if err := keyspace.Validate(userKey, s.maxKeyLen); err != nil {
		return nil, err
	}
	return keyspace.Build(runID, keyspace.TagKV, userKey), nil
}

// Get reads key's current value. If tx is non-nil, the read happens
// inside that transaction (read-your-writes, repeatable read); otherwise
// it runs against a fresh one-off snapshot.
func (s *Store) Get(tx *txn.Txn, runID, key string) (values.Value, bool, error) {
	flatKey, err := s.buildKey(runID, key)
	if err != nil {
		return values.Null(), false, err
	}

	if tx != nil {
		raw, ok, err := tx.Get(flatKey)
		if err != nil || !ok {
			return values.Null(), false, err
		}
		v, err := values.Decode(raw)
		return v, err == nil, err
	}

	t := s.mgr.Begin()
	defer t.Rollback()
	raw, ok, err := t.Get(flatKey)
	if err != nil || !ok {
		return values.Null(), false, err
	}
	v, err := values.Decode(raw)
	return v, err == nil, err
}

// Put writes key=value. If tx is non-nil the write is staged in that
// transaction; otherwise it auto-commits in a single-operation
// transaction (spec §4.5: "put and delete auto-wrap ... if called
// outside one").
func (s *Store) Put(tx *txn.Txn, runID, key string, value values.Value, ttlMicros int64) error {
	flatKey, err := s.buildKey(runID, key)
	if err != nil {
		return err
	}
	encoded := values.Encode(value)
	if len(encoded) > s.maxValLen {
		return dberrors.ConstraintViolation(dberrors.ReasonValueTooLarge, int64(len(encoded)), int64(s.maxValLen))
	}

	if tx != nil {
		return tx.Put(flatKey, encoded, ttlMicros)
	}

	_, err = txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		return t.Put(flatKey, encoded, ttlMicros)
	})
	return err
}

// Delete tombstones key. Auto-commits outside a transaction, same as Put.
func (s *Store) Delete(tx *txn.Txn, runID, key string) error {
	flatKey, err := s.buildKey(runID, key)
	if err != nil {
		return err
	}
	if tx != nil {
		return tx.Delete(flatKey)
	}
	_, err = txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		return t.Delete(flatKey)
	})
	return err
}

// ListWithPrefix returns every live (key, value) pair in runID whose
// user key starts with prefix, in byte-lexicographic order. Runs under
// tx's snapshot if given, otherwise a fresh one-off snapshot.
func (s *Store) ListWithPrefix(tx *txn.Txn, runID, prefix string) ([]KeyValue, error) {
	flatPrefix := keyspace.UserKeyPrefix(runID, keyspace.TagKV, prefix)
	runPrefix := keyspace.Prefix(runID, keyspace.TagKV)

	var watermark uint64
	var store *mvstore.Store
	var nowUs int64

	if tx != nil {
		watermark = tx.Watermark()
		store = tx.Store()
		nowUs = tx.NowMicros()
	} else {
		t := s.mgr.Begin()
		defer t.Rollback()
		watermark = t.Watermark()
		store = t.Store()
		nowUs = t.NowMicros()
	}

	var out []KeyValue
	store.ScanPrefix(flatPrefix, watermark, nowUs, func(flatKey []byte, e mvstore.Entry) bool {
		v, err := values.Decode(e.Value)
		if err != nil {
			return true
		}
		out = append(out, KeyValue{
			Key:     string(flatKey[len(runPrefix):]),
			Value:   v,
			Version: e.Version,
		})
		return true
	})
	return out, nil
}

// KeyValue is one row of a ListWithPrefix result.
type KeyValue struct {
	Key     string
	Value   values.Value
	Version uint64
}
