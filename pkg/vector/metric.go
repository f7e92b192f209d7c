// Distance/similarity kernels for the vector store (spec §4.5: "a
// distance metric (cosine or Euclidean)"). Generic over
// golang.org/x/exp/constraints.Float so one kernel serves any float
// element type; this package stores and searches vectors as float64,
// and each kernel accumulates in float64. This mirrors how the rest of
// this module favors ecosystem generics helpers over hand-written
// type-specific duplicates.
package vector

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Metric identifies a collection's configured distance function.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return "unknown"
	}
}

// ParseMetric parses the collection metadata's persisted metric name.
func ParseMetric(s string) (Metric, bool) {
	switch s {
	case "cosine":
		return MetricCosine, true
	case "euclidean":
		return MetricEuclidean, true
	default:
		return 0, false
	}
}

// score returns a value where higher is always better, regardless of
// metric: cosine similarity as-is, and negated Euclidean distance so
// search's single top-k sort (descending) works uniformly across both
// metrics (spec §4.5 "search ... returns the top-k by metric" does not
// otherwise fix a sort direction).
func score[F constraints.Float](metric Metric, a, b []F) float64 {
	switch metric {
	case MetricEuclidean:
		return -euclidean(a, b)
	default:
		return cosineSimilarity(a, b)
	}
}

func cosineSimilarity[F constraints.Float](a, b []F) float64 {
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclidean[F constraints.Float](a, b []F) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
