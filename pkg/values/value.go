// Package values implements the engine's closed tagged-union value model:
// Null, Bool, Int, Float, String, Bytes, Array, Object. Equality is
// variant-tagged (cross-variant comparisons are always false) and Float
// follows IEEE-754 semantics rather than Go's native float comparison.
package values

import (
	"math"
)

// Kind tags a Value's variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Value is the closed tagged union. Only one of the typed fields is
// meaningful, selected by Kind; constructors below are the only
// supported way to build one.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	arr  []Value
	obj  []ObjectField
}

// ObjectField is one key/value pair of an Object value. Objects preserve
// insertion order (matching JSON object semantics in most tooling) but
// equality and lookup are by key, not position.
type ObjectField struct {
	Key   string
	Value Value
}

func Null() Value              { return Value{kind: KindNull} }
func Bool(v bool) Value        { return Value{kind: KindBool, b: v} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value     { return Value{kind: KindBytes, by: append([]byte(nil), v...)} }
func Array(v []Value) Value    { return Value{kind: KindArray, arr: append([]Value(nil), v...)} }
func Object(v []ObjectField) Value {
	return Value{kind: KindObject, obj: append([]ObjectField(nil), v...)}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.by, v.kind == KindBytes }
func (v Value) AsArray() ([]Value, bool)   { return v.arr, v.kind == KindArray }
func (v Value) AsObject() ([]ObjectField, bool) {
	return v.obj, v.kind == KindObject
}

// Get returns the field value for key in an Object, or (Null, false).
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	for _, f := range v.obj {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Null(), false
}

// WithField returns a copy of an Object value with key set to val,
// replacing an existing field of the same name if present.
func (v Value) WithField(key string, val Value) Value {
	fields := append([]ObjectField(nil), v.obj...)
	for i, f := range fields {
		if f.Key == key {
			fields[i].Value = val
			return Object(fields)
		}
	}
	fields = append(fields, ObjectField{Key: key, Value: val})
	return Object(fields)
}

// WithoutField returns a copy of an Object value with key removed.
func (v Value) WithoutField(key string) Value {
	fields := make([]ObjectField, 0, len(v.obj))
	for _, f := range v.obj {
		if f.Key != key {
			fields = append(fields, f)
		}
	}
	return Object(fields)
}

// Equal implements variant-tagged, IEEE-754-correct equality: cross-kind
// comparisons are always false; NaN is never equal to itself; -0.0 and
// 0.0 compare equal (their sign is preserved only through encode/decode,
// never through equality).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f // Go's == already gives NaN!=NaN and -0.0==0.0
	case KindString:
		return a.s == b.s
	case KindBytes:
		return bytesEqual(a.by, b.by)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for _, f := range a.obj {
			ov, ok := b.Get(f.Key)
			if !ok || !Equal(f.Value, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsNegativeZero reports whether v is the float -0.0, distinguishing it
// from +0.0 for callers (such as the JSON wrapped-form encoder) that must
// preserve the sign bit explicitly.
func IsNegativeZero(f float64) bool {
	return f == 0 && math.Signbit(f)
}
