package engine

import (
	"time"

	"github.com/agentdb/core/pkg/durability"
	"github.com/agentdb/core/pkg/keyspace"
)

// Config is the engine's configuration surface (spec §6): it plays the
// role of the teacher's wal.Options/DefaultOptions() pair, extended to
// every field spec §6 names.
type Config struct {
	// Path is the data directory. Ignored entirely when Durability is
	// ModeInMemory, in which case the engine never touches disk.
	Path string

	// Durability selects InMemory/Batched/Strict (spec §4.4).
	Durability durability.Mode

	// WALSegmentSize bounds each WAL segment file under <Path>/wal/ before
	// the durability layer rotates to a new one (spec §4.4 "segments
	// rotate at a configured size", spec §6 file layout
	// "wal/<segment_seq>.wal"). Zero or negative falls back to
	// durability.DefaultWALSegmentSize.
	WALSegmentSize int64

	// SnapshotInterval is how often the background snapshotter captures
	// a disk image of every shard. Zero disables periodic snapshotting
	// (manual Engine.Snapshot calls still work).
	SnapshotInterval time.Duration

	// CompactionInterval is how often the background compactor sweeps
	// version chains for retention (spec §4.1). Zero uses
	// compaction.New's own default.
	CompactionInterval time.Duration

	// ShardCount must be a power of two (spec §4.1). Zero uses
	// mvstore.DefaultShardCount.
	ShardCount int

	// MaxKeyBytes/MaxValueBytes bound user keys and encoded values
	// across every facade (spec §6, §7 ConstraintViolation). Zero uses
	// each facade's own default.
	MaxKeyBytes   int
	MaxValueBytes int

	// RetentionPolicy is accepted for spec §6 surface completeness.
	// Compaction's actual retention rule (spec §4.1) is fixed: never
	// remove a version reachable by the oldest live snapshot. This
	// field is reserved for a future pluggable compaction.Policy
	// strategy object (spec §9 "pluggable strategies") and is not yet
	// consulted.
	RetentionPolicy string
}

// DefaultConfig mirrors the teacher's wal.DefaultOptions in spirit: safe
// defaults for a fresh engine with durability enabled at the
// middle-ground Batched mode.
func DefaultConfig(path string) Config {
	return Config{
		Path:               path,
		Durability:         durability.ModeBatched,
		WALSegmentSize:     durability.DefaultWALSegmentSize,
		SnapshotInterval:   5 * time.Minute,
		CompactionInterval: 30 * time.Second,
		ShardCount:         0, // mvstore.DefaultShardCount
		MaxKeyBytes:        keyspace.MaxKeyBytes,
		MaxValueBytes:      16 << 20,
	}
}
