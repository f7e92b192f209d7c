// Package vector implements the Vector Store facade (spec §4.5 "Vector
// Store"): fixed-dimension collections with a cosine or Euclidean
// distance metric, validated inserts, and top-k search with an optional
// metadata filter.
//
// Grounded on the teacher's facade-over-transaction pattern (thin
// wrapper auto-committing outside an explicit transaction) generalized
// from a single typed row table to per-collection metadata plus
// per-entry documents in the flat keyspace; the metadata filter reuses
// pkg/query's adapted condition vocabulary.
package vector

import (
	"sort"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/query"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// Store is a stateless facade over a txn.Manager.
type Store struct {
	mgr       *txn.Manager
	maxKeyLen int
}

func New(mgr *txn.Manager, maxKeyBytes int) *Store {
	if maxKeyBytes <= 0 {
		maxKeyBytes = keyspace.MaxKeyBytes
	}
	return &Store{mgr: mgr, maxKeyLen: maxKeyBytes}
}

// Result is one ranked hit from Search.
type Result struct {
	ID    string
	Score float64
}

func (s *Store) collectionMetaKey(runID, collection string) ([]byte, error) {
	if err := keyspace.Validate(collection, s.maxKeyLen); err != nil {
		return nil, err
	}
	return keyspace.Build(runID, keyspace.TagVector, keyspace.ReservedPrefix+"meta/"+collection), nil
}

func (s *Store) entryKey(runID, collection, id string) ([]byte, error) {
	if err := keyspace.Validate(id, s.maxKeyLen); err != nil {
		return nil, err
	}
	return keyspace.Build(runID, keyspace.TagVector, "v/"+collection+"/"+id), nil
}

func (s *Store) entriesPrefix(runID, collection string) []byte {
	return keyspace.Build(runID, keyspace.TagVector, "v/"+collection+"/")
}

// CreateCollection registers a new collection with a fixed dimension
// and distance metric, failing with Conflict if the name is already
// taken.
func (s *Store) CreateCollection(runID, collection string, dim int, metric Metric) error {
	metaKey, err := s.collectionMetaKey(runID, collection)
	if err != nil {
		return err
	}
	meta := values.Object([]values.ObjectField{
		{Key: "dim", Value: values.Int(int64(dim))},
		{Key: "metric", Value: values.String(metric.String())},
	})
	_, err = txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		t.RequireAbsent(metaKey)
		return t.Put(metaKey, values.Encode(meta), 0)
	})
	return err
}

func (s *Store) loadCollection(t *txn.Txn, runID, collection string) (dim int, metric Metric, err error) {
	metaKey, err := s.collectionMetaKey(runID, collection)
	if err != nil {
		return 0, 0, err
	}
	raw, ok, err := t.Get(metaKey)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, dberrors.NotFound("vector collection does not exist")
	}
	meta, err := values.Decode(raw)
	if err != nil {
		return 0, 0, err
	}
	dimVal, _ := meta.Get("dim")
	d, _ := dimVal.AsInt()
	metricVal, _ := meta.Get("metric")
	metricStr, _ := metricVal.AsString()
	m, ok := ParseMetric(metricStr)
	if !ok {
		return 0, 0, dberrors.Internal("corrupt vector collection metadata: unknown metric")
	}
	return int(d), m, nil
}

// Insert validates vector's length against the collection's configured
// dimension and stores it with its metadata, failing with
// DimensionMismatch on a length mismatch (spec §4.5).
func (s *Store) Insert(runID, collection, id string, vec []float64, metadata map[string]values.Value) (uint64, error) {
	entryKey, err := s.entryKey(runID, collection, id)
	if err != nil {
		return 0, err
	}
	tx, err := txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		dim, _, err := s.loadCollection(t, runID, collection)
		if err != nil {
			return err
		}
		if len(vec) != dim {
			return dberrors.DimensionMismatch(dim, len(vec))
		}
		doc := encodeEntry(vec, metadata)
		return t.Put(entryKey, values.Encode(doc), 0)
	})
	if err != nil {
		return 0, err
	}
	return tx.CommittedVersion(), nil
}

// Get returns id's vector and metadata within collection.
func (s *Store) Get(runID, collection, id string) ([]float64, map[string]values.Value, uint64, bool, error) {
	entryKey, err := s.entryKey(runID, collection, id)
	if err != nil {
		return nil, nil, 0, false, err
	}
	t := s.mgr.Begin()
	defer t.Rollback()

	raw, ok, err := t.Get(entryKey)
	if err != nil || !ok {
		return nil, nil, 0, false, err
	}
	doc, err := values.Decode(raw)
	if err != nil {
		return nil, nil, 0, false, err
	}
	vec, metadata := decodeEntry(doc)
	return vec, metadata, t.Store().HeadVersion(entryKey), true, nil
}

// Delete tombstones id within collection.
func (s *Store) Delete(runID, collection, id string) error {
	entryKey, err := s.entryKey(runID, collection, id)
	if err != nil {
		return err
	}
	_, err = txn.Retry(s.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		return t.Delete(entryKey)
	})
	return err
}

// Search returns the top-k entries in collection ranked by the
// collection's configured metric (higher score always better — see
// pkg/vector/metric.go's score helper), stable on ties by ascending id
// (spec §4.5 "stable on ties by id"). filter, if non-empty, excludes any
// entry whose metadata does not satisfy every condition.
func (s *Store) Search(runID, collection string, query_ []float64, k int, filter query.Filter) ([]Result, error) {
	t := s.mgr.Begin()
	defer t.Rollback()

	dim, metric, err := s.loadCollection(t, runID, collection)
	if err != nil {
		return nil, err
	}
	if len(query_) != dim {
		return nil, dberrors.DimensionMismatch(dim, len(query_))
	}

	prefix := s.entriesPrefix(runID, collection)
	type candidate struct {
		id    string
		score float64
	}
	var candidates []candidate
	t.Store().ScanPrefix(prefix, t.Watermark(), t.NowMicros(), func(flatKey []byte, e mvstore.Entry) bool {
		doc, err := values.Decode(e.Value)
		if err != nil {
			return true
		}
		vec, metadata := decodeEntry(doc)
		if len(filter) > 0 && !filter.Matches(metadata) {
			return true
		}
		id := string(flatKey[len(prefix):])
		candidates = append(candidates, candidate{id: id, score: score(metric, vec, query_)})
		return true
	})

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.id, Score: c.score}
	}
	return out, nil
}

func encodeEntry(vec []float64, metadata map[string]values.Value) values.Value {
	elems := make([]values.Value, len(vec))
	for i, f := range vec {
		elems[i] = values.Float(f)
	}
	fields := make([]values.ObjectField, 0, len(metadata))
	for k, v := range metadata {
		fields = append(fields, values.ObjectField{Key: k, Value: v})
	}
	return values.Object([]values.ObjectField{
		{Key: "vector", Value: values.Array(elems)},
		{Key: "metadata", Value: values.Object(fields)},
	})
}

func decodeEntry(doc values.Value) ([]float64, map[string]values.Value) {
	vecVal, _ := doc.Get("vector")
	arr, _ := vecVal.AsArray()
	vec := make([]float64, len(arr))
	for i, v := range arr {
		f, _ := v.AsFloat()
		vec[i] = f
	}
	metaVal, _ := doc.Get("metadata")
	fields, _ := metaVal.AsObject()
	metadata := make(map[string]values.Value, len(fields))
	for _, f := range fields {
		metadata[f.Key] = f.Value
	}
	return vec, metadata
}
