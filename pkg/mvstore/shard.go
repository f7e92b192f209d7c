package mvstore

import (
	"sync"

	"github.com/agentdb/core/pkg/btree"
	"github.com/agentdb/core/pkg/types"
)

// shardBTreeDegree mirrors the teacher's default tree order (pkg/storage
// engine.go used 64-way nodes for its row indexes); kept the same for a
// byte-keyed index holding many more, smaller entries per node.
const shardBTreeDegree = 64

// shard owns one slice of the keyspace: a latch-crabbing B+Tree index
// (pkg/btree, unchanged from the teacher) whose leaf DataPtrs no longer
// point at heap-file offsets but at slots in chains below.
type shard struct {
	mu     sync.Mutex // serializes chains slice growth and chain mutation
	tree   *btree.BPlusTree
	chains []*chain
	keys   [][]byte // parallel to chains; slot -> owning flat key, for full enumeration (snapshotting)
}

func newShard() *shard {
	return &shard{
		tree: btree.NewUniqueTree(shardBTreeDegree),
	}
}

// putResult is returned by put/delete so callers (pkg/txn) can record
// what the prior visible value was, for CAS and read-set validation.
type putResult struct {
	PriorVersion uint64
	HadPrior     bool
}

// put appends a new version to key's chain, creating the chain on first
// write. version must be strictly greater than any version already on
// the chain (enforced by chain.append); callers allocate it from the
// shared VersionCounter under the commit lock (pkg/txn) so this never
// races in practice, but the error is still surfaced defensively.
func (s *shard) put(key []byte, e Entry) (putResult, error) {
	var res putResult
	var appendErr error

	err := s.tree.Upsert(types.ByteKey(key), func(slot int64, exists bool) (int64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if exists {
			c := s.chains[slot]
			if h := c.head(); h != nil && !h.Tombstone {
				res.HadPrior = true
				res.PriorVersion = h.Version
			}
			if err := c.append(e); err != nil {
				appendErr = err
				return slot, nil
			}
			return slot, nil
		}

		c := &chain{}
		_ = c.append(e) // cannot fail: chain is empty
		s.chains = append(s.chains, c)
		s.keys = append(s.keys, append([]byte(nil), key...))
		return int64(len(s.chains) - 1), nil
	})
	if err != nil {
		return res, err
	}
	return res, appendErr
}

// delete appends a tombstone version, same allocation rules as put.
func (s *shard) delete(key []byte, version uint64, nowUs int64) (putResult, error) {
	return s.put(key, Entry{Version: version, TimestampUs: nowUs, Tombstone: true})
}

// getAt returns the version of key visible at watermark, or false if
// absent, tombstoned, or TTL-expired.
func (s *shard) getAt(key []byte, watermark uint64, nowUs int64) (Entry, bool) {
	slot, ok := s.tree.Get(types.ByteKey(key))
	if !ok {
		return Entry{}, false
	}
	s.mu.Lock()
	c := s.chains[slot]
	s.mu.Unlock()

	e, ok := c.visibleAt(watermark, nowUs)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// headVersion returns the chain's current head version for key (0 if
// absent), used by optimistic validation to detect concurrent writers.
func (s *shard) headVersion(key []byte) uint64 {
	slot, ok := s.tree.Get(types.ByteKey(key))
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chains[slot].headVersion()
}

// isAbsent reports whether key currently has no live entry (used for
// CAS expected-absent checks without needing a full snapshot read).
func (s *shard) isAbsent(key []byte) bool {
	slot, ok := s.tree.Get(types.ByteKey(key))
	if !ok {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chains[slot].headIsTombstoneOrAbsent()
}

// scanPrefix walks the shard's leaf linked-list starting at prefix and
// invokes fn for every visible entry whose key starts with prefix, in
// ascending byte order. Stops early if fn returns false.
func (s *shard) scanPrefix(prefix []byte, watermark uint64, nowUs int64, fn func(key []byte, e Entry) bool) {
	// FindLeafLowerBound returns the leaf RLocked; each transition to
	// node.Next below re-RLocks/unlocks in turn, mirroring the teacher's
	// cursor.go leaf-chain walk.
	node, idx := s.tree.FindLeafLowerBound(types.ByteKey(prefix))
	if node == nil {
		return
	}

	for node != nil {
		for i := idx; i < node.N; i++ {
			k := []byte(node.Keys[i].(types.ByteKey))
			if !hasPrefix(k, prefix) {
				node.RUnlock()
				return
			}
			slot := node.DataPtrs[i]

			s.mu.Lock()
			c := s.chains[slot]
			s.mu.Unlock()

			e, ok := c.visibleAt(watermark, nowUs)
			if ok && !fn(k, *e) {
				node.RUnlock()
				return
			}
		}
		next := node.Next
		node.RUnlock()
		node = next
		idx = 0
		if node != nil {
			node.RLock()
		}
	}
}

// loadRaw seeds key's chain with e directly, used only by recovery
// before the shard is visible to any other caller.
func (s *shard) loadRaw(key []byte, e Entry) {
	_ = s.tree.Upsert(types.ByteKey(key), func(slot int64, exists bool) (int64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if exists {
			s.chains[slot] = &chain{entries: []Entry{e}}
			return slot, nil
		}
		s.chains = append(s.chains, &chain{entries: []Entry{e}})
		s.keys = append(s.keys, append([]byte(nil), key...))
		return int64(len(s.chains) - 1), nil
	})
}

// compact runs chain.compact over every chain in the shard and reports
// the total number of entries dropped. Holds the shard lock for the
// whole pass; pkg/compaction bounds how much work happens per pass by
// capping how many shards it visits before yielding, not by interrupting
// a single shard's pass midway (spec §4.1: "never holds more than one
// shard lock at a time").
func (s *shard) compact(minActiveWatermark uint64, nowUs int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, c := range s.chains {
		removed += c.compact(minActiveWatermark, nowUs)
	}
	return removed
}

// snapshotAll invokes fn for every key's raw chain entry at or below
// watermark (tombstones included, TTL ignored), for the disk
// snapshotter (pkg/durability). Order is slot-insertion order, not
// byte order; the caller sorts if the on-disk format requires it.
func (s *shard) snapshotAll(watermark uint64, fn func(key []byte, e Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.chains {
		if e, ok := c.rawAtOrBelow(watermark); ok {
			fn(s.keys[i], *e)
		}
	}
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
