package mvstore

import (
	"hash/fnv"
	"sort"
)

// DefaultShardCount is the default shard fan-out (spec §4.1: "a power of
// two"); matches the teacher's usual default pool/worker sizing of 16.
const DefaultShardCount = 16

// Store is the sharded multi-version store shared by every primitive
// facade. Routing is by FNV-1a hash of the full flat key (run_id + tag +
// user_key, see pkg/keyspace) so a single run or primitive never pins
// all its traffic to one shard.
type Store struct {
	shards  []*shard
	mask    uint64
	version *VersionCounter
}

// NewStore creates a Store with shardCount shards, which must be a power
// of two. Panics on misuse since this is a constructor-time invariant,
// not a runtime condition callers can recover from.
func NewStore(shardCount int, startVersion uint64) *Store {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		panic("mvstore: shardCount must be a power of two")
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Store{
		shards:  shards,
		mask:    uint64(shardCount - 1),
		version: NewVersionCounter(startVersion),
	}
}

// Versions exposes the store's global version counter so pkg/txn can
// allocate commit versions and pkg/durability can record the watermark
// at snapshot time.
func (s *Store) Versions() *VersionCounter { return s.version }

func (s *Store) shardFor(key []byte) *shard {
	h := fnv.New64a()
	h.Write(key)
	return s.shards[h.Sum64()&s.mask]
}

// Put writes a new version for key, returning the prior head version
// (if any) for transaction validation.
func (s *Store) Put(key []byte, value []byte, version uint64, nowUs int64, ttlMicros int64) (putResult, error) {
	return s.shardFor(key).put(key, Entry{
		Value:       value,
		Version:     version,
		TimestampUs: nowUs,
		TTLMicros:   ttlMicros,
	})
}

// Delete appends a tombstone version for key.
func (s *Store) Delete(key []byte, version uint64, nowUs int64) (putResult, error) {
	return s.shardFor(key).delete(key, version, nowUs)
}

// GetAt returns the version of key visible at watermark.
func (s *Store) GetAt(key []byte, watermark uint64, nowUs int64) (Entry, bool) {
	return s.shardFor(key).getAt(key, watermark, nowUs)
}

// HeadVersion returns key's current chain head version, 0 if absent.
func (s *Store) HeadVersion(key []byte) uint64 {
	return s.shardFor(key).headVersion(key)
}

// IsAbsent reports whether key currently has no live entry.
func (s *Store) IsAbsent(key []byte) bool {
	return s.shardFor(key).isAbsent(key)
}

// ScanPrefix iterates every visible entry under prefix, in ascending
// byte order within each shard. Because shards are independent B+Trees,
// a prefix scan that spans multiple shards (any real run/tag prefix
// does) collects from all shards and merges, since global ordering
// across shards is not otherwise guaranteed by hash routing.
func (s *Store) ScanPrefix(prefix []byte, watermark uint64, nowUs int64, fn func(key []byte, e Entry) bool) {
	type kv struct {
		key []byte
		e   Entry
	}
	var all []kv
	for _, sh := range s.shards {
		sh.scanPrefix(prefix, watermark, nowUs, func(key []byte, e Entry) bool {
			all = append(all, kv{append([]byte(nil), key...), e})
			return true
		})
	}
	sort.Slice(all, func(i, j int) bool { return lessBytes(all[i].key, all[j].key) })
	for _, item := range all {
		if !fn(item.key, item.e) {
			return
		}
	}
}

// ShardCount returns the number of shards, for the disk snapshot file
// header (spec §6 "shard_count") and for compaction's shard-by-shard walk.
func (s *Store) ShardCount() int { return len(s.shards) }

// SnapshotShard invokes fn for every key's raw entry at or below
// watermark within shard index i, sorted into byte-lexicographic key
// order as the on-disk snapshot format requires (spec §6: "entries in
// key-sorted order").
func (s *Store) SnapshotShard(i int, watermark uint64, fn func(key []byte, e Entry)) {
	type kv struct {
		key []byte
		e   Entry
	}
	var all []kv
	s.shards[i].snapshotAll(watermark, func(key []byte, e Entry) {
		all = append(all, kv{key, e})
	})
	sort.Slice(all, func(a, b int) bool { return lessBytes(all[a].key, all[b].key) })
	for _, item := range all {
		fn(item.key, item.e)
	}
}

// LoadRaw seeds key's chain directly with a single raw entry, used only
// by recovery (pkg/durability) to install a disk snapshot's image before
// any WAL replay or live traffic begins. It bypasses the version-
// monotonicity check Put enforces, since a freshly opened store has an
// empty chain and recovery is the only writer.
func (s *Store) LoadRaw(key []byte, e Entry) {
	s.shardFor(key).loadRaw(key, e)
}

// CompactShard runs retention compaction on shard index i and returns
// the number of entries dropped (spec §4.1 "Retention and Compaction").
func (s *Store) CompactShard(i int, minActiveWatermark uint64, nowUs int64) int {
	return s.shards[i].compact(minActiveWatermark, nowUs)
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
