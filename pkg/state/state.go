// Package state implements the State Cell facade (spec §4.5 "State
// Cell"): a single versioned values.Value per (run, key) with
// init/read/set/compare-and-swap. CAS compares values, not versions.
//
// Grounded on the teacher's own CAS usage inside pkg/storage/
// transaction_manager.go (a write only applies if the row's version
// still matches what was read), generalized here into a standalone
// primitive: Init stages pkg/txn's RequireAbsent, and CAS reads the
// current value and compares it structurally inside the retry loop.
package state

import (
	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// Cell is a stateless facade over a txn.Manager.
type Cell struct {
	mgr       *txn.Manager
	maxKeyLen int
}

func New(mgr *txn.Manager, maxKeyBytes int) *Cell {
	if maxKeyBytes <= 0 {
		maxKeyBytes = keyspace.MaxKeyBytes
	}
	return &Cell{mgr: mgr, maxKeyLen: maxKeyBytes}
}

func (c *Cell) buildKey(runID, key string) ([]byte, error) {
	if err := keyspace.Validate(key, c.maxKeyLen); err != nil {
		return nil, err
	}
	return keyspace.Build(runID, keyspace.TagState, key), nil
}

// Init creates key with an initial value if and only if it does not
// already exist, returning dberrors.CodeConstraintViolation-free success
// or a Conflict if the cell was already initialized (spec: "Init sets
// the initial value; it fails if the cell already exists").
func (c *Cell) Init(runID, key string, value values.Value) (uint64, error) {
	flatKey, err := c.buildKey(runID, key)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(c.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		t.RequireAbsent(flatKey)
		if err := t.Put(flatKey, values.Encode(value), 0); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Read returns key's current value and version, or (zero, 0, false) if
// it has never been initialized.
func (c *Cell) Read(runID, key string) (values.Value, uint64, bool, error) {
	flatKey, err := c.buildKey(runID, key)
	if err != nil {
		return values.Null(), 0, false, err
	}
	t := c.mgr.Begin()
	defer t.Rollback()

	raw, ok, err := t.Get(flatKey)
	if err != nil || !ok {
		return values.Null(), 0, false, err
	}
	v, err := values.Decode(raw)
	if err != nil {
		return values.Null(), 0, false, err
	}
	return v, t.Store().HeadVersion(flatKey), true, nil
}

// Set unconditionally overwrites key's value, creating the cell if it
// does not yet exist (spec: "set(name, value) unconditional").
func (c *Cell) Set(runID, key string, value values.Value) (uint64, error) {
	flatKey, err := c.buildKey(runID, key)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(c.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		return t.Put(flatKey, values.Encode(value), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Expectation is CAS's "expected" argument. A cell that does not exist
// is not the same thing as a cell holding values.Null() (spec §6 wire
// format treats `null` and an absent key as distinct), so CAS cannot
// take a bare values.Value for "expected" the way Init/Set take one for
// "new" — ExpectAbsent and ExpectValue make the two cases unambiguous
// at the call site instead of overloading Null to also mean absent.
type Expectation struct {
	absent bool
	value  values.Value
}

// ExpectAbsent builds an Expectation requiring the cell to not exist.
func ExpectAbsent() Expectation { return Expectation{absent: true} }

// ExpectValue builds an Expectation requiring structural equality with v.
func ExpectValue(v values.Value) Expectation { return Expectation{value: v} }

// CAS atomically sets key to newValue only if its current state matches
// expected (spec: "cas uses structural value equality on expected, not
// version equality") — unlike pkg/kv and pkg/jsondoc this facade cannot
// stage a version-based RequireVersion, since two distinct writes of the
// same value must compare equal. Validation re-reads and re-compares
// inside the retry loop rather than staging a cas-set entry, since
// pkg/txn's cas primitives only compare versions or absence.
func (c *Cell) CAS(runID, key string, expected Expectation, newValue values.Value) (uint64, error) {
	flatKey, err := c.buildKey(runID, key)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(c.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		raw, ok, err := t.Get(flatKey)
		if err != nil {
			return err
		}
		if expected.absent {
			if ok {
				return dberrors.Conflict("state cell cas: expected absent", "absent", "present")
			}
			return t.Put(flatKey, values.Encode(newValue), 0)
		}
		if !ok {
			return dberrors.Conflict("state cell cas: expected a value, cell is absent", expected.value, "absent")
		}
		current, err := values.Decode(raw)
		if err != nil {
			return err
		}
		if !values.Equal(current, expected.value) {
			return dberrors.Conflict("state cell cas: value mismatch", expected.value, current)
		}
		return t.Put(flatKey, values.Encode(newValue), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}
