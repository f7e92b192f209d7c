package wal

import "time"

// SyncPolicy selects how aggressively the writer pushes records to
// stable storage, the generalization of the spec's three named
// DurabilityModes (InMemory/Batched/Strict, spec §4.4) down to the
// WAL-writer level: pkg/durability maps ModeStrict to SyncEveryWrite and
// ModeBatched to one of the two group-commit policies below.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every WriteEntry. Strongest durability,
	// highest per-commit latency (spec's Strict mode).
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs on a background timer, coalescing however many
	// writes land inside the window (spec's Batched mode, time-driven).
	SyncInterval

	// SyncBatch fsyncs once buffered-but-unsynced bytes cross a
	// threshold (spec's Batched mode, size-driven).
	SyncBatch
)

// Options configures a WALWriter.
type Options struct {
	// DirPath is the directory the WAL segment file lives under.
	DirPath string

	// BufferSize is the bufio buffer size between WriteEntry and the OS.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is the background fsync period for SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is the unsynced-byte threshold for SyncBatch.
	SyncBatchBytes int64
}

// DefaultOptions mirrors the teacher's own defaults: a 64KB bufio
// buffer and the SyncInterval policy, syncing every 200ms. The 1MB
// SyncBatchBytes threshold only applies if the caller switches the
// policy to SyncBatch.
func DefaultOptions() Options {
	return Options{
		DirPath:              "./wal_data",
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
	}
}
