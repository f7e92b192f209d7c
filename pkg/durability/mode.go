// Package durability wires pkg/wal and a disk snapshotter into the
// transaction commit path (spec §5) and provides crash recovery (spec
// §5 "Recovery"). Grounded on the teacher's pkg/storage/checkpoint.go
// (atomic write-temp-then-rename snapshotting) and engine.go's
// Recover/CreateCheckpoint, generalized from one typed B+Tree per table
// to the full sharded mvstore.Store.
package durability

// Mode selects how aggressively commits are made durable (spec §5).
type Mode int

const (
	// ModeInMemory never writes a WAL record; a process crash loses
	// every commit since the last snapshot (and if no snapshot exists,
	// all of them). Suitable for caches and ephemeral runs.
	ModeInMemory Mode = iota

	// ModeBatched groups WAL writes and syncs on a timer (OpenWAL keeps
	// pkg/wal's default SyncInterval policy; SyncBatch is not used):
	// commits return before their record is guaranteed on disk.
	ModeBatched

	// ModeStrict fsyncs after every single commit (pkg/wal's
	// SyncEveryWrite): a commit only returns once its record is durable.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeInMemory:
		return "in_memory"
	case ModeBatched:
		return "batched"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}
