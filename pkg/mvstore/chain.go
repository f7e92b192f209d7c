// Package mvstore implements the sharded multi-version store (spec
// §4.1) and its snapshot mechanism (§4.2). It is the in-memory heart of
// the engine: a fixed array of shards, each holding a byte-key-ordered
// B+Tree index (pkg/btree, adapted from the teacher's latch-crabbing
// tree) whose leaves point into a per-shard slice of version chains.
//
// This generalizes the teacher's pkg/storage/engine.go Put/Get/Scan/Del
// version-chain-traversal logic from "one heap-file-backed chain per row
// per table" to "one in-memory chain per flat key, shared by every
// primitive," and its pkg/storage/lsn_tracker.go atomic counter becomes
// the global version counter below.
package mvstore

import (
	"sync/atomic"
	"time"
)

// Entry is one stored version in a chain (spec §3 "Stored Entry").
type Entry struct {
	Value       []byte // canonical-encoded value bytes (see pkg/values)
	Version     uint64
	TimestampUs int64
	TTLMicros   int64 // 0 means no TTL
	Tombstone   bool
}

// expired reports whether e is TTL-expired as of nowUs. TTL is a view
// predicate (spec §9): it is evaluated independent of any reader's
// snapshot watermark, so an expired entry is invisible to every reader
// regardless of when its snapshot was acquired.
func (e *Entry) expired(nowUs int64) bool {
	if e.TTLMicros <= 0 {
		return false
	}
	return e.TimestampUs+e.TTLMicros <= nowUs
}

// chain is the newest-first version chain for one key. Protected by the
// owning shard's lock; the chain itself carries no lock of its own
// because all mutation happens through the shard's B+Tree Upsert, which
// already serializes access to a given leaf.
type chain struct {
	entries []Entry // index 0 is newest
}

// head returns the newest entry, or nil if the chain is empty (should
// not happen once created, but guards defensively).
func (c *chain) head() *Entry {
	if len(c.entries) == 0 {
		return nil
	}
	return &c.entries[0]
}

// append pushes a new newest-first entry. Returns ErrVersionConflict if
// v is not strictly greater than the current head's version (spec
// §4.1 "Failure modes").
func (c *chain) append(e Entry) error {
	if h := c.head(); h != nil && e.Version <= h.Version {
		return ErrVersionConflict
	}
	c.entries = append([]Entry{e}, c.entries...)
	return nil
}

// visibleAt returns the newest entry with Version <= watermark, or
// (nil, false) if there is none or that entry is a tombstone or has
// expired; older entries behind it are never returned.
func (c *chain) visibleAt(watermark uint64, nowUs int64) (*Entry, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Version > watermark {
			continue
		}
		if e.Tombstone || e.expired(nowUs) {
			return nil, false
		}
		return e, true
	}
	return nil, false
}

// rawAtOrBelow returns the newest entry (tombstone or not, expired or
// not) with Version <= watermark, regardless of visibility, for the
// disk snapshotter (pkg/durability): a snapshot must persist a
// tombstone's version explicitly so recovery preserves the strictly-
// monotonic version invariant for the key, not just "absent."
func (c *chain) rawAtOrBelow(watermark uint64) (*Entry, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Version <= watermark {
			return e, true
		}
	}
	return nil, false
}

// compact trims entries older than whatever the oldest live snapshot
// still needs (spec §4.1 "Retention and Compaction": "never removes an
// entry whose version exceeds the oldest live snapshot watermark"), and
// unconditionally drops TTL-expired entries regardless of position
// (spec §9: TTL is a view predicate, so an expired entry is already
// invisible to every reader and removing it changes no observation).
// Returns the number of entries dropped.
func (c *chain) compact(minActiveWatermark uint64, nowUs int64) int {
	kept := c.entries[:0]
	removed := 0
	cutoffReached := false

	for _, e := range c.entries {
		if e.TTLMicros > 0 && e.expired(nowUs) {
			removed++
			continue
		}
		if cutoffReached {
			removed++
			continue
		}
		kept = append(kept, e)
		if e.Version <= minActiveWatermark {
			cutoffReached = true
		}
	}
	c.entries = kept
	return removed
}

// headVersion returns the chain's most recent version, 0 if empty. Used
// by transaction validation to detect read-write conflicts.
func (c *chain) headVersion() uint64 {
	if h := c.head(); h != nil {
		return h.Version
	}
	return 0
}

// headIsTombstoneOrAbsent reports whether the chain currently has no
// live (non-tombstone) entry — used by CAS expected-absent validation.
func (c *chain) headIsTombstoneOrAbsent() bool {
	h := c.head()
	return h == nil || h.Tombstone
}

// VersionCounter is the engine-global, atomically allocated commit
// version counter (spec §3 "Version": "allocated atomically"). Grounded
// on the teacher's pkg/storage/lsn_tracker.go, renamed LSN->Version.
type VersionCounter struct {
	current uint64
}

func NewVersionCounter(start uint64) *VersionCounter {
	return &VersionCounter{current: start}
}

func (vc *VersionCounter) Next() uint64 { return atomic.AddUint64(&vc.current, 1) }
func (vc *VersionCounter) Current() uint64 {
	return atomic.LoadUint64(&vc.current)
}
func (vc *VersionCounter) Set(v uint64) { atomic.StoreUint64(&vc.current, v) }

// NowMicros is the wall-clock timestamp source used throughout the
// engine; factored into a var so tests can override it deterministically
// without touching call sites.
var NowMicros = func() int64 { return time.Now().UnixMicro() }
