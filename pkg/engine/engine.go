// Package engine assembles the sharded store, the transaction manager,
// the durability pipeline, the background compactor and snapshotter, and
// the six primitive facades into one value whose lifetime is
// Open..Close (spec §9 "a single 'engine' value whose lifetime =
// open..close"). Grounded on the teacher's pkg/storage/engine.go
// StorageEngine/NewStorageEngine/Close, generalized from one table
// heap + one WAL to the full multi-primitive flat keyspace.
package engine

import (
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentdb/core/pkg/compaction"
	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/durability"
	"github.com/agentdb/core/pkg/eventlog"
	"github.com/agentdb/core/pkg/jsondoc"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/kv"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/runs"
	"github.com/agentdb/core/pkg/state"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/vector"
)

// Engine owns every subsystem and is safe for concurrent use by multiple
// goroutines, the same concurrency contract the teacher's StorageEngine
// makes (its own lock is per-table; this engine's is per-shard, inside
// pkg/mvstore).
type Engine struct {
	cfg Config
	log zerolog.Logger

	store      *mvstore.Store
	registry   *mvstore.SnapshotRegistry
	txnMgr     *txn.Manager
	wal        *durability.WAL
	snapshotter *durability.Snapshotter
	compactor  *compaction.Compactor
	metrics    *Metrics

	kv     *kv.Store
	events *eventlog.Log
	state  *state.Cell
	json   *jsondoc.Store
	vector *vector.Store
	runs   *runs.Index

	closeOnce sync.Once

	snapStop chan struct{}
	snapDone chan struct{}
}

// Open creates or recovers an engine rooted at cfg.Path (ignored when
// cfg.Durability is ModeInMemory). Recovery (spec §4.4) loads the newest
// valid snapshot and replays WAL records past its watermark before any
// facade becomes usable.
func Open(cfg Config, reg prometheus.Registerer) (*Engine, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "engine").Logger()

	shardCount := cfg.ShardCount
	if shardCount <= 0 {
		shardCount = mvstore.DefaultShardCount
	}
	store := mvstore.NewStore(shardCount, 0)
	registry := mvstore.NewSnapshotRegistry()

	var snapshotter *durability.Snapshotter
	if cfg.Durability != durability.ModeInMemory {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, dberrors.Wrap(dberrors.CodeInternal, err, "create data directory")
		}

		stats, err := durability.Recover(cfg.Path, store)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Uint64("snapshot_version", stats.SnapshotVersion).
			Int("records_applied", stats.RecordsApplied).
			Int("records_skipped", stats.RecordsSkipped).
			Uint64("final_version", stats.FinalVersion).
			Int64("truncated_at", stats.TruncatedAt).
			Msg("recovery complete")

		snapshotter, err = durability.NewSnapshotter(cfg.Path)
		if err != nil {
			return nil, err
		}
	}

	wal, err := durability.OpenWAL(cfg.Path, cfg.Durability, cfg.WALSegmentSize)
	if err != nil {
		return nil, err
	}

	var durWriter txn.DurabilityWriter
	if cfg.Durability != durability.ModeInMemory {
		durWriter = wal
	}
	txnMgr := txn.NewManager(store, registry, durWriter)

	metrics := newMetrics(reg)
	txnMgr.SetCommitObserver(func() { metrics.CommitsTotal.Inc() })
	txnMgr.SetAbortObserver(func() { metrics.AbortsTotal.Inc() })
	txnMgr.SetConflictObserver(func() { metrics.ConflictsTotal.Inc() })
	wal.SetByteObserver(func(n int) { metrics.WALBytesTotal.Add(float64(n)) })

	compactor := compaction.New(store, registry, cfg.CompactionInterval)
	registerCompactionGauges(reg, compactor)
	compactor.Start()

	runsIdx := runs.New(txnMgr)
	if err := runsIdx.EnsureDefault(mvstore.NowMicros()); err != nil {
		compactor.Stop()
		wal.Close()
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		log:         logger,
		store:       store,
		registry:    registry,
		txnMgr:      txnMgr,
		wal:         wal,
		snapshotter: snapshotter,
		compactor:   compactor,
		metrics:     metrics,
		kv:          kv.New(txnMgr, cfg.MaxKeyBytes, cfg.MaxValueBytes),
		events:      eventlog.New(txnMgr),
		state:       state.New(txnMgr, cfg.MaxKeyBytes),
		json:        jsondoc.New(txnMgr, cfg.MaxKeyBytes),
		vector:      vector.New(txnMgr, cfg.MaxKeyBytes),
		runs:        runsIdx,
	}

	if snapshotter != nil && cfg.SnapshotInterval > 0 {
		e.startSnapshotLoop(cfg.SnapshotInterval)
	}

	return e, nil
}

func (e *Engine) startSnapshotLoop(interval time.Duration) {
	e.snapStop = make(chan struct{})
	e.snapDone = make(chan struct{})
	go func() {
		defer close(e.snapDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.snapStop:
				return
			case <-ticker.C:
				if _, err := e.snapshotter.Create(e.store, e.registry); err != nil {
					e.log.Error().Err(err).Msg("periodic snapshot failed")
				}
			}
		}
	}()
}

// Snapshot manually triggers a disk snapshot, independent of the
// background interval. A no-op returning (0, nil) in InMemory mode.
func (e *Engine) Snapshot() (uint64, error) {
	if e.snapshotter == nil {
		return 0, nil
	}
	return e.snapshotter.Create(e.store, e.registry)
}

// Close stops the background compactor and snapshotter and closes the WAL.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.snapStop != nil {
			close(e.snapStop)
			<-e.snapDone
		}
		e.compactor.Stop()
		err = e.wal.Close()
		e.log.Info().Msg("engine closed")
	})
	return err
}

// KV returns the KV Store facade.
func (e *Engine) KV() *kv.Store { return e.kv }

// Events returns the Event Log facade.
func (e *Engine) Events() *eventlog.Log { return e.events }

// State returns the State Cell facade.
func (e *Engine) State() *state.Cell { return e.state }

// JSON returns the JSON Store facade.
func (e *Engine) JSON() *jsondoc.Store { return e.json }

// Vectors returns the Vector Store facade.
func (e *Engine) Vectors() *vector.Store { return e.vector }

// Runs returns the Run Index facade.
func (e *Engine) Runs() *runs.Index { return e.runs }

// Metrics returns the engine's prometheus collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// TxnManager exposes the transaction manager directly for callers that
// need to span multiple facades inside one transaction (e.g. reading a
// State Cell and appending an Event atomically).
func (e *Engine) TxnManager() *txn.Manager { return e.txnMgr }

// DeleteRun removes id's run index entry and cascades to every key
// tagged with that run across every primitive (spec §3 "destroyed by
// delete_run(id) which cascades to all keys tagged with that run id").
// The default run cannot be deleted (runs.Index.DeleteRun rejects it
// before this method stages any cascade delete).
func (e *Engine) DeleteRun(id string) error {
	run, ok, err := e.runs.GetRun(id)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.RunNotFound("run does not exist: " + id)
	}
	if run.ID == runs.DefaultRunID {
		return e.runs.DeleteRun(run.ID)
	}

	prefix := keyspace.RunPrefix(run.ID)
	_, err = txn.Retry(e.txnMgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		var keys [][]byte
		t.Store().ScanPrefix(prefix, t.Watermark(), t.NowMicros(), func(k []byte, _ mvstore.Entry) bool {
			keys = append(keys, append([]byte(nil), k...))
			return true
		})
		for _, k := range keys {
			if err := t.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return e.runs.DeleteRun(run.ID)
}

// Path returns the configured data directory, whether or not the
// current durability mode actually touches disk.
func (e *Engine) Path() string { return e.cfg.Path }
