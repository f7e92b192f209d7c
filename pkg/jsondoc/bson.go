// Adapted from the teacher's pkg/storage/bson.go (JsonToBson/BsonToJson):
// same bson.UnmarshalExtJSON ingestion path, retargeted from building a
// bson.D for column-value comparison into building a values.Value
// document tree for this engine's JSON Store.
package jsondoc

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/values"
)

// parseJSONDocument converts external JSON document text into a
// values.Value via BSON's extended-JSON parser (spec §6's JSON store
// ingests plain JSON bodies; bson.UnmarshalExtJSON is the ecosystem
// parser this module's stack already depends on, so ingestion goes
// through it rather than the stdlib encoding/json wrapped-form codec
// values.FromJSON uses for the engine's own closed-union round trip).
func parseJSONDocument(jsonText []byte) (values.Value, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(jsonText, true, &doc); err != nil {
		return values.Value{}, dberrors.InvalidPath("malformed document JSON: " + err.Error())
	}
	return bsonDToValue(doc), nil
}

func bsonDToValue(doc bson.D) values.Value {
	fields := make([]values.ObjectField, 0, len(doc))
	for _, el := range doc {
		fields = append(fields, values.ObjectField{Key: el.Key, Value: bsonValueToValue(el.Value)})
	}
	return values.Object(fields)
}

func bsonValueToValue(v any) values.Value {
	switch x := v.(type) {
	case nil:
		return values.Null()
	case bool:
		return values.Bool(x)
	case int:
		return values.Int(int64(x))
	case int32:
		return values.Int(int64(x))
	case int64:
		return values.Int(x)
	case float32:
		return values.Float(float64(x))
	case float64:
		return values.Float(x)
	case string:
		return values.String(x)
	case bson.Binary:
		return values.Bytes(x.Data)
	case bson.D:
		return bsonDToValue(x)
	case bson.A:
		elems := make([]values.Value, len(x))
		for i, el := range x {
			elems[i] = bsonValueToValue(el)
		}
		return values.Array(elems)
	case []any:
		elems := make([]values.Value, len(x))
		for i, el := range x {
			elems[i] = bsonValueToValue(el)
		}
		return values.Array(elems)
	default:
		return values.String(fmt.Sprintf("%v", x))
	}
}
