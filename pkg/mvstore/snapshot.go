package mvstore

import (
	"math"
	"sync"
)

// SnapshotRegistry tracks every currently-open read watermark so
// compaction (pkg/compaction) knows which tombstoned/superseded versions
// are still visible to some reader and must be retained (spec §4.2,
// §8 "Compaction").
//
// Adapted from the teacher's pkg/storage/transaction_manager.go
// TransactionRegistry: renamed Txn->Handle and LSN->Version since this
// registry no longer assumes its callers are transactions — readers
// outside any transaction (a bare Get) also acquire a watermark.
type SnapshotRegistry struct {
	mu             sync.Mutex
	active         map[uint64]int // watermark -> refcount
	minActive      uint64
	nextHandleSeed uint64
}

func NewSnapshotRegistry() *SnapshotRegistry {
	return &SnapshotRegistry{
		active:    make(map[uint64]int),
		minActive: math.MaxUint64,
	}
}

// Acquire registers a reader holding the given watermark and returns a
// release function the caller must invoke exactly once when the
// snapshot is no longer needed.
func (r *SnapshotRegistry) Acquire(watermark uint64) (release func()) {
	r.mu.Lock()
	r.active[watermark]++
	if watermark < r.minActive {
		r.minActive = watermark
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.release(watermark) })
	}
}

func (r *SnapshotRegistry) release(watermark uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[watermark]--
	if r.active[watermark] <= 0 {
		delete(r.active, watermark)
	}

	if len(r.active) == 0 {
		r.minActive = math.MaxUint64
		return
	}

	min := uint64(math.MaxUint64)
	for w := range r.active {
		if w < min {
			min = w
		}
	}
	r.minActive = min
}

// MinActiveWatermark returns the oldest watermark any live reader still
// needs, or math.MaxUint64 if no reader is active. A version superseded
// by a newer one and older than this value can be compacted away.
func (r *SnapshotRegistry) MinActiveWatermark() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minActive
}
