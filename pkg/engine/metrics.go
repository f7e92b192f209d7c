package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentdb/core/pkg/compaction"
)

// Metrics holds the engine's prometheus collectors (SPEC_FULL §B: client
// golang is promoted from a transitive teacher dependency to a direct,
// exercised one, the same ambient role cuemby-warren's pkg/metrics gives
// it). Registered against a caller-supplied registry so embedding
// applications can expose it on their own /metrics handler, or against
// prometheus.NewRegistry() for an isolated one per Engine.
type Metrics struct {
	CommitsTotal   prometheus.Counter
	AbortsTotal    prometheus.Counter
	ConflictsTotal prometheus.Counter
	WALBytesTotal  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentdb_commits_total",
			Help: "Total number of transactions committed.",
		}),
		AbortsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentdb_aborts_total",
			Help: "Total number of transactions aborted, including conflicts.",
		}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentdb_conflicts_total",
			Help: "Total number of commit-time validation conflicts observed by the retry wrapper.",
		}),
		WALBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentdb_wal_bytes_total",
			Help: "Total bytes appended to the write-ahead log.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CommitsTotal, m.AbortsTotal, m.ConflictsTotal, m.WALBytesTotal)
	}
	return m
}

// registerCompactionGauges wires two GaugeFuncs that read straight from
// the compactor's own lifetime counters, so the metrics surface never
// drifts from what compaction.Stats itself reports.
func registerCompactionGauges(reg prometheus.Registerer, c *compaction.Compactor) {
	if reg == nil {
		return
	}
	passes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "agentdb_compaction_passes_total",
		Help: "Total number of completed compaction sweeps.",
	}, func() float64 {
		p, _ := c.Stats().Snapshot()
		return float64(p)
	})
	freed := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "agentdb_compaction_entries_freed_total",
		Help: "Total number of version-chain entries reclaimed by compaction.",
	}, func() float64 {
		_, f := c.Stats().Snapshot()
		return float64(f)
	})
	reg.MustRegister(passes, freed)
}
