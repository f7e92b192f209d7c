// Package compaction implements the background retention/compaction
// task (spec §4.1 "Retention and Compaction"). Grounded on the teacher's
// pkg/storage/engine.go Vacuum: min-active-version-gated removal,
// bounded per-pass work, shard-by-shard locking, with one swap — the
// teacher compacts a heap file by rewriting it; this engine compacts
// in-memory version chains in place, so there is no file to rewrite and
// no tree to patch afterward.
package compaction

import (
	"runtime"
	"sync"
	"time"

	"github.com/agentdb/core/pkg/mvstore"
)

// Stats accumulates lifetime compaction counters, exposed through
// pkg/engine's metrics.
type Stats struct {
	mu           sync.Mutex
	Passes       uint64
	EntriesFreed uint64
}

func (s *Stats) record(freed int) {
	s.mu.Lock()
	s.Passes++
	s.EntriesFreed += uint64(freed)
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() (passes, freed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Passes, s.EntriesFreed
}

// Compactor periodically walks every shard of a Store, trimming version
// chains down to what the oldest live snapshot still needs and dropping
// TTL-expired entries outright (spec §4.1, §4.2). Each pass yields
// between shards (spec: "bounded in time per pass and yields between
// shards") so a long pass never starves commit-path shard locks for an
// extended stretch.
type Compactor struct {
	store    *mvstore.Store
	registry *mvstore.SnapshotRegistry
	interval time.Duration
	nowMicro func() int64

	stats Stats

	stop chan struct{}
	done chan struct{}
}

// New creates a Compactor. It does not start its background loop until
// Start is called (spec §9: "a single 'engine' value whose lifetime =
// open..close" owns starting and stopping its workers).
func New(store *mvstore.Store, registry *mvstore.SnapshotRegistry, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Compactor{
		store:    store,
		registry: registry,
		interval: interval,
		nowMicro: mvstore.NowMicros,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background compaction loop on its own goroutine.
func (c *Compactor) Start() {
	go c.loop()
}

// Stop signals the loop to exit and waits for it to finish its current pass.
func (c *Compactor) Stop() {
	close(c.stop)
	<-c.done
}

// Stats returns the compactor's lifetime counters.
func (c *Compactor) Stats() *Stats { return &c.stats }

func (c *Compactor) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce performs one full sweep across every shard, yielding the
// goroutine between shards via runtime.Gosched so other
// goroutines get a scheduling chance under heavy contention.
func (c *Compactor) RunOnce() {
	minActive := c.registry.MinActiveWatermark()
	nowUs := c.nowMicro()

	freed := 0
	for i := 0; i < c.store.ShardCount(); i++ {
		freed += c.store.CompactShard(i, minActive, nowUs)
		runtime.Gosched()
	}
	c.stats.record(freed)
}
