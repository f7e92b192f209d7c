package values

import (
	"encoding/binary"
	"math"

	"github.com/agentdb/core/pkg/dberrors"
)

// Canonical binary encoding tags, one byte each. Mirrors the style of the
// teacher's pkg/storage/checkpoint_serializer.go serializeKey/
// deserializeKey: a one-byte tag followed by a typed, length-prefixed
// payload where needed. Kept stable across engine versions because it is
// also the on-disk representation (heap entries, WAL payloads, snapshot
// bodies all embed encoded values).
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagArray
	tagObject
)

// Encode produces the canonical byte representation of v. Round-tripping
// through Decode(Encode(v)) reproduces v exactly, including NaN, ±Inf,
// signed zero, and nested Array/Object structure.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 16)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(buf, tagNull)
	case KindBool:
		b := byte(0)
		if v.b {
			b = 1
		}
		return append(buf, tagBool, b)
	case KindInt:
		buf = append(buf, tagInt)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		return append(buf, tmp[:]...)
	case KindFloat:
		buf = append(buf, tagFloat)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.f))
		return append(buf, tmp[:]...)
	case KindString:
		return appendLenPrefixed(append(buf, tagString), []byte(v.s))
	case KindBytes:
		return appendLenPrefixed(append(buf, tagBytes), v.by)
	case KindArray:
		buf = append(buf, tagArray)
		buf = appendUvarint(buf, uint64(len(v.arr)))
		for _, el := range v.arr {
			buf = appendValue(buf, el)
		}
		return buf
	case KindObject:
		buf = append(buf, tagObject)
		buf = appendUvarint(buf, uint64(len(v.obj)))
		for _, f := range v.obj {
			buf = appendLenPrefixed(buf, []byte(f.Key))
			buf = appendValue(buf, f.Value)
		}
		return buf
	default:
		return append(buf, tagNull)
	}
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendUvarint(buf []byte, n uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmp[:], n)
	return append(buf, tmp[:l]...)
}

// Decode parses the canonical encoding produced by Encode. It reports
// Internal on malformed input — callers control both sides of this
// format (WAL/snapshot/heap), so corruption here is a durability bug,
// not a user error.
func Decode(data []byte) (Value, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, dberrors.Internal("trailing bytes after value")
	}
	return v, nil
}

func decodeValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Value{}, nil, dberrors.Internal("empty value encoding")
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagNull:
		return Null(), rest, nil
	case tagBool:
		if len(rest) < 1 {
			return Value{}, nil, dberrors.Internal("truncated bool value")
		}
		return Bool(rest[0] != 0), rest[1:], nil
	case tagInt:
		if len(rest) < 8 {
			return Value{}, nil, dberrors.Internal("truncated int value")
		}
		return Int(int64(binary.LittleEndian.Uint64(rest[:8]))), rest[8:], nil
	case tagFloat:
		if len(rest) < 8 {
			return Value{}, nil, dberrors.Internal("truncated float value")
		}
		bits := binary.LittleEndian.Uint64(rest[:8])
		return Float(math.Float64frombits(bits)), rest[8:], nil
	case tagString:
		s, rest, err := decodeLenPrefixed(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return String(string(s)), rest, nil
	case tagBytes:
		b, rest, err := decodeLenPrefixed(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Bytes(b), rest, nil
	case tagArray:
		n, rest, err := decodeUvarint(rest)
		if err != nil {
			return Value{}, nil, err
		}
		elems := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			var el Value
			el, rest, err = decodeValue(rest)
			if err != nil {
				return Value{}, nil, err
			}
			elems = append(elems, el)
		}
		return Array(elems), rest, nil
	case tagObject:
		n, rest, err := decodeUvarint(rest)
		if err != nil {
			return Value{}, nil, err
		}
		fields := make([]ObjectField, 0, n)
		for i := uint64(0); i < n; i++ {
			var keyBytes []byte
			keyBytes, rest, err = decodeLenPrefixed(rest)
			if err != nil {
				return Value{}, nil, err
			}
			var fv Value
			fv, rest, err = decodeValue(rest)
			if err != nil {
				return Value{}, nil, err
			}
			fields = append(fields, ObjectField{Key: string(keyBytes), Value: fv})
		}
		return Object(fields), rest, nil
	default:
		return Value{}, nil, dberrors.Internal("unknown value tag")
	}
}

func decodeLenPrefixed(data []byte) ([]byte, []byte, error) {
	n, rest, err := decodeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, dberrors.Internal("truncated length-prefixed field")
	}
	return rest[:n], rest[n:], nil
}

func decodeUvarint(data []byte) (uint64, []byte, error) {
	n, l := binary.Uvarint(data)
	if l <= 0 {
		return 0, nil, dberrors.Internal("malformed varint")
	}
	return n, data[l:], nil
}
