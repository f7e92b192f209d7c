// Package txn implements the optimistic-concurrency transaction manager
// (spec §4.3): an Active/Validating/Committed/Aborted state machine over
// pkg/mvstore, with snapshot-isolation validation (conflicts are
// detected on the read-set and cas-set only — concurrent writes to
// disjoint keys, write skew included, are always permitted).
//
// Grounded on the teacher's pkg/storage/engine.go Transaction/
// IsVisible/refreshSnapshot and pkg/storage/transaction_manager.go,
// generalized from one typed table row per transaction to the flat
// multi-primitive byte keyspace.
package txn

import (
	"sync"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/mvstore"
)

// State is the transaction lifecycle state (spec §4.3).
type State int

const (
	StateActive State = iota
	StateValidating
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// opKind distinguishes a write-set entry's effect.
type opKind int

const (
	opPut opKind = iota
	opDelete
)

type writeOp struct {
	kind      opKind
	value     []byte
	ttlMicros int64
}

// casCheck is one CAS-set entry: an expected version or expected-absent
// condition on a key, checked at commit. Unlike a read-set entry, it
// never comes from a prior Get. It applies no write of its own: the
// effect field is not read by Commit, and the conditional write is
// staged separately with Put/Delete. RequireAbsent callers (state Init,
// jsondoc Create, vector CreateCollection, runs CreateRun) use it for
// create-if-absent.
type casCheck struct {
	expectAbsent  bool
	expectVersion uint64
	effect        writeOp
}

// Manager owns the store, the snapshot registry, and the single global
// commit lock that serializes validate -> allocate-version -> durable
// log -> apply (spec §4.3 "Commit protocol").
type Manager struct {
	store      *mvstore.Store
	registry   *mvstore.SnapshotRegistry
	durability DurabilityWriter
	commitMu   sync.Mutex
	nowMicros  func() int64

	onConflict func()
	onCommit   func()
	onAbort    func()
}

// DurabilityWriter is implemented by pkg/durability's WAL integration.
// Manager calls it while still holding the commit lock, after
// validation succeeds and before applying writes to the store, so a
// crash between the two always recovers to a consistent state (spec
// §5 "Durability pipeline").
type DurabilityWriter interface {
	WriteCommit(version uint64, ops []Op) error
}

// Op is one effect of a committed transaction, as seen by the
// durability layer (WAL record payload) and by compaction.
type Op struct {
	Key       []byte
	Value     []byte // nil for deletes
	TTLMicros int64
	Tombstone bool
}

// NewManager wires a Manager over store. durability may be nil, which
// corresponds to DurabilityMode InMemory (spec §5): commits apply to
// the store but are not logged anywhere.
func NewManager(store *mvstore.Store, registry *mvstore.SnapshotRegistry, durability DurabilityWriter) *Manager {
	return &Manager{
		store:      store,
		registry:   registry,
		durability: durability,
		nowMicros:  mvstore.NowMicros,
	}
}

// Store exposes the underlying sharded store directly, for facades that
// need direct scan access outside of any single transaction (e.g.
// pkg/engine's cascading DeleteRun prefix scan).
func (m *Manager) Store() *mvstore.Store { return m.store }

// SetConflictObserver registers fn to be called once per commit attempt
// inside Retry that fails with a conflict, the last attempt included
// (spec SPEC_FULL §D "retry wrapper metrics"):
// pkg/engine wires this to a prometheus counter at Open time so
// write-skew/contention hot spots are visible to operators without
// pkg/txn itself depending on a metrics library.
func (m *Manager) SetConflictObserver(fn func()) { m.onConflict = fn }

// SetCommitObserver registers fn to be called once per successful Commit.
func (m *Manager) SetCommitObserver(fn func()) { m.onCommit = fn }

// SetAbortObserver registers fn to be called once per Commit that fails
// validation (conflicts are a subset of aborts; only those inside Retry
// also fire onConflict).
func (m *Manager) SetAbortObserver(fn func()) { m.onAbort = fn }

// Txn is a single transaction. Not safe for concurrent use by multiple
// goroutines (spec §4.3: one transaction, one logical caller).
type Txn struct {
	mgr       *Manager
	watermark uint64
	release   func()
	state     State

	mu               sync.Mutex
	reads            map[string]uint64 // key -> version observed at Get time
	writes           map[string]writeOp
	cas              map[string]casCheck
	committedVersion uint64
}

// Begin opens a new transaction with a snapshot fixed at the store's
// current version watermark (spec §4.2).
func (m *Manager) Begin() *Txn {
	watermark := m.store.Versions().Current()
	release := m.registry.Acquire(watermark)
	return &Txn{
		mgr:       m,
		watermark: watermark,
		release:   release,
		state:     StateActive,
		reads:     make(map[string]uint64),
		writes:    make(map[string]writeOp),
		cas:       make(map[string]casCheck),
	}
}

// State returns the transaction's current lifecycle state.
func (t *Txn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Watermark returns the snapshot version this transaction reads at.
func (t *Txn) Watermark() uint64 { return t.watermark }

// Store exposes the underlying sharded store for facades that need
// direct scan access under this transaction's snapshot (e.g. pkg/kv's
// ListWithPrefix, pkg/vector's Search).
func (t *Txn) Store() *mvstore.Store { return t.mgr.store }

// NowMicros returns the manager's wall-clock source, overridable in
// tests the same way pkg/mvstore.NowMicros is.
func (t *Txn) NowMicros() int64 { return t.mgr.nowMicros() }

// CommittedVersion returns the version this transaction's Commit
// allocated and applied. Valid only after Commit returns nil; zero
// otherwise. Facades that need to report "the version our write
// produced" (spec §4.5) must read this instead of re-querying the
// store's head version after Commit returns, since by then the commit
// lock is released and another writer may already have moved the head.
func (t *Txn) CommittedVersion() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committedVersion
}

// Get reads key as of the transaction's snapshot, preferring the
// transaction's own uncommitted write-set (read-your-writes, spec
// §4.3). Reads are recorded in the read-set for validation at commit,
// unless the key was itself written by this transaction (a txn never
// conflicts with its own writes).
func (t *Txn) Get(key []byte) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		return nil, false, dberrors.Internal("transaction is not active")
	}

	sk := string(key)
	if w, ok := t.writes[sk]; ok {
		if w.kind == opDelete {
			return nil, false, nil
		}
		return w.value, true, nil
	}

	e, ok := t.mgr.store.GetAt(key, t.watermark, t.mgr.nowMicros())
	if !ok {
		t.reads[sk] = 0
		return nil, false, nil
	}
	t.reads[sk] = e.Version
	return e.Value, true, nil
}

// Put stages a write. Last-writer-wins within the transaction (spec
// §4.3 "blind write"): a second Put/Delete on the same key replaces the
// first, and the whole write-set commits atomically.
func (t *Txn) Put(key, value []byte, ttlMicros int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return dberrors.Internal("transaction is not active")
	}
	t.writes[string(key)] = writeOp{kind: opPut, value: value, ttlMicros: ttlMicros}
	return nil
}

// Delete stages a tombstone write.
func (t *Txn) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return dberrors.Internal("transaction is not active")
	}
	t.writes[string(key)] = writeOp{kind: opDelete}
	return nil
}

// RequireAbsent adds a cas-set entry requiring that key have no live
// value at commit time, regardless of what the transaction itself read.
func (t *Txn) RequireAbsent(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cas[string(key)] = casCheck{expectAbsent: true}
}

// RequireVersion adds a cas-set entry requiring key's current head
// version to equal expected at commit time. pkg/state's CAS does not use
// it; that facade compares values instead.
func (t *Txn) RequireVersion(key []byte, expected uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cas[string(key)] = casCheck{expectVersion: expected}
}

// Rollback discards the transaction without applying any writes.
func (t *Txn) Rollback() {
	t.mu.Lock()
	if t.state == StateActive || t.state == StateValidating {
		t.state = StateAborted
	}
	t.mu.Unlock()
	t.release()
}

// Commit validates the read-set and cas-set against the store's current
// state, and if they hold, atomically allocates a new version, logs the
// commit durably (if configured), and applies every staged write. On
// validation failure the transaction is left Aborted and the caller
// should retry (see Retry).
func (t *Txn) Commit() error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return dberrors.Internal("transaction is not active")
	}
	t.state = StateValidating
	t.mu.Unlock()

	defer t.release()

	t.mgr.commitMu.Lock()
	defer t.mgr.commitMu.Unlock()

	if err := t.validateLocked(); err != nil {
		t.mu.Lock()
		t.state = StateAborted
		t.mu.Unlock()
		if t.mgr.onAbort != nil {
			t.mgr.onAbort()
		}
		return err
	}

	version := t.mgr.store.Versions().Next()
	nowUs := t.mgr.nowMicros()

	if t.mgr.durability != nil {
		if err := t.mgr.durability.WriteCommit(version, t.opsLocked()); err != nil {
			t.mu.Lock()
			t.state = StateAborted
			t.mu.Unlock()
			return dberrors.Wrap(dberrors.CodeInternal, err, "durability write failed")
		}
	}

	for key, w := range t.writes {
		switch w.kind {
		case opPut:
			if _, err := t.mgr.store.Put([]byte(key), w.value, version, nowUs, w.ttlMicros); err != nil {
				return dberrors.Wrap(dberrors.CodeInternal, err, "apply failed after durable commit")
			}
		case opDelete:
			if _, err := t.mgr.store.Delete([]byte(key), version, nowUs); err != nil {
				return dberrors.Wrap(dberrors.CodeInternal, err, "apply failed after durable commit")
			}
		}
	}

	t.mu.Lock()
	t.state = StateCommitted
	t.committedVersion = version
	t.mu.Unlock()
	if t.mgr.onCommit != nil {
		t.mgr.onCommit()
	}
	return nil
}

// validateLocked checks the read-set and cas-set against the store's
// live state. Must be called with mgr.commitMu held so no other
// transaction can commit between validation and apply.
func (t *Txn) validateLocked() error {
	for key, seenVersion := range t.reads {
		current := t.mgr.store.HeadVersion([]byte(key))
		if current != seenVersion {
			return dberrors.Conflict("read-set conflict", seenVersion, current)
		}
	}
	for key, check := range t.cas {
		if check.expectAbsent {
			if !t.mgr.store.IsAbsent([]byte(key)) {
				return dberrors.Conflict("expected key absent", "absent", t.mgr.store.HeadVersion([]byte(key)))
			}
			continue
		}
		current := t.mgr.store.HeadVersion([]byte(key))
		if current != check.expectVersion {
			return dberrors.Conflict("cas version mismatch", check.expectVersion, current)
		}
	}
	return nil
}

func (t *Txn) opsLocked() []Op {
	ops := make([]Op, 0, len(t.writes))
	for key, w := range t.writes {
		switch w.kind {
		case opPut:
			ops = append(ops, Op{Key: []byte(key), Value: w.value, TTLMicros: w.ttlMicros})
		case opDelete:
			ops = append(ops, Op{Key: []byte(key), Tombstone: true})
		}
	}
	return ops
}
