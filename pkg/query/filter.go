// Package query implements the metadata filter predicate vocabulary
// used by the vector store's optional search filter (spec §4.5: "search
// ... optional_metadata_filter"). Adapted from the teacher's
// pkg/query.ScanCondition — a B+Tree range-scan optimizer over
// types.Comparable keys — retargeted from index key-range scanning to
// matching a vector entry's metadata bag (map[string]values.Value)
// against per-field conditions; the comparison operators and the
// Matches shape carry over unchanged, ShouldContinue/GetStartKey/
// ShouldSeek dropped since metadata isn't indexed and every candidate is
// checked in full rather than range-seeked.
package query

import (
	"github.com/agentdb/core/pkg/values"
)

// Operator enumerates the comparisons a FieldCondition can express.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpBetween
)

// FieldCondition constrains one metadata field to a comparison against
// Value (and ValueEnd, for OpBetween). Ordering is only defined between
// same-kind Int/Float/String values, so an ordering or Between condition
// against a field of another kind never matches; Equal against another
// kind never matches and NotEqual always does. A missing field never
// matches (see Filter.Matches).
type FieldCondition struct {
	Operator Operator
	Value    values.Value
	ValueEnd values.Value
}

func Equal(v values.Value) *FieldCondition          { return &FieldCondition{Operator: OpEqual, Value: v} }
func NotEqual(v values.Value) *FieldCondition        { return &FieldCondition{Operator: OpNotEqual, Value: v} }
func GreaterThan(v values.Value) *FieldCondition     { return &FieldCondition{Operator: OpGreaterThan, Value: v} }
func GreaterOrEqual(v values.Value) *FieldCondition  { return &FieldCondition{Operator: OpGreaterOrEqual, Value: v} }
func LessThan(v values.Value) *FieldCondition        { return &FieldCondition{Operator: OpLessThan, Value: v} }
func LessOrEqual(v values.Value) *FieldCondition     { return &FieldCondition{Operator: OpLessOrEqual, Value: v} }
func Between(start, end values.Value) *FieldCondition {
	return &FieldCondition{Operator: OpBetween, Value: start, ValueEnd: end}
}

// compare orders two same-kind Int/Float/String values; ok is false for
// any other kind or a kind mismatch, since ordering is undefined there.
func compare(a, b values.Value) (cmp int, ok bool) {
	if a.Kind() != b.Kind() {
		return 0, false
	}
	switch a.Kind() {
	case values.KindInt:
		av, _ := a.AsInt()
		bv, _ := b.AsInt()
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case values.KindFloat:
		av, _ := a.AsFloat()
		bv, _ := b.AsFloat()
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case values.KindString:
		av, _ := a.AsString()
		bv, _ := b.AsString()
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Matches reports whether field satisfies the condition. Equality
// (Equal/NotEqual) falls back to values.Equal for kinds compare() can't
// order (Bool, Bytes, Array, Object), so non-orderable metadata can
// still be filtered by exact match.
func (c *FieldCondition) Matches(field values.Value) bool {
	switch c.Operator {
	case OpEqual:
		if cmp, ok := compare(field, c.Value); ok {
			return cmp == 0
		}
		return values.Equal(field, c.Value)
	case OpNotEqual:
		if cmp, ok := compare(field, c.Value); ok {
			return cmp != 0
		}
		return !values.Equal(field, c.Value)
	case OpGreaterThan:
		cmp, ok := compare(field, c.Value)
		return ok && cmp > 0
	case OpGreaterOrEqual:
		cmp, ok := compare(field, c.Value)
		return ok && cmp >= 0
	case OpLessThan:
		cmp, ok := compare(field, c.Value)
		return ok && cmp < 0
	case OpLessOrEqual:
		cmp, ok := compare(field, c.Value)
		return ok && cmp <= 0
	case OpBetween:
		lo, ok1 := compare(field, c.Value)
		hi, ok2 := compare(field, c.ValueEnd)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	default:
		return false
	}
}

// Filter is a conjunction of per-field conditions (spec §4.5's
// "optional_metadata_filter"): a metadata bag matches only if every
// named field is present and satisfies its condition.
type Filter map[string]*FieldCondition

// Matches reports whether metadata satisfies every condition in f. A
// nil or empty Filter matches everything.
func (f Filter) Matches(metadata map[string]values.Value) bool {
	for field, cond := range f {
		v, ok := metadata[field]
		if !ok || !cond.Matches(v) {
			return false
		}
	}
	return true
}
