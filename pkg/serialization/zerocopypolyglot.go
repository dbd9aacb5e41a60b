package serialization

import (
	"encoding/json"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/commy-mesh/commy/pkg/model"
)

// ZeroCopyPolyglotBackend is the schema-driven, cross-language backend:
// plain JSON on the wire (readable by any language's JSON decoder), read
// back with jsonparser, which locates each field in the original buffer
// without unmarshaling the whole object. Field values are then copied out:
// strings with string(value), numbers parsed into float64.
type ZeroCopyPolyglotBackend struct{}

func NewZeroCopyPolyglotBackend() *ZeroCopyPolyglotBackend { return &ZeroCopyPolyglotBackend{} }

func (b *ZeroCopyPolyglotBackend) Name() string             { return "zero-copy-polyglot" }
func (b *ZeroCopyPolyglotBackend) Format() model.FormatFlags { return model.FormatZeroCopyPolyglot }

func (b *ZeroCopyPolyglotBackend) Serialize(value *Record, out []byte) (int, error) {
	obj := make(map[string]any, len(value.Fields))
	order := make([]string, 0, len(value.Fields))
	for _, f := range value.Fields {
		obj[f.Name] = f.Value
		order = append(order, f.Name)
	}

	// encoding/json sorts map keys; rebuild with json.RawMessage in field
	// order to keep the declaration-order contract other backends honor.
	var buf []byte
	buf = append(buf, '{')
	for i, name := range order {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, _ := json.Marshal(name)
		valJSON, err := json.Marshal(obj[name])
		if err != nil {
			return 0, model.NewFault(model.KindValidation, "zerocopypolyglot.serialize", err)
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')

	if len(buf) > len(out) {
		return 0, model.NewFault(model.KindCapacityExceeded, "zerocopypolyglot.serialize", model.ErrCapacityExceeded).
			WithDetail("needed", len(buf)).WithDetail("have", len(out))
	}
	return copy(out, buf), nil
}

func (b *ZeroCopyPolyglotBackend) Deserialize(data []byte) (*Record, error) {
	rec := &Record{}

	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, offset int) error {
		var v any
		switch dataType {
		case jsonparser.String:
			// value here is already a slice into data for the unescaped
			// fast path; only strings containing escapes are copied by
			// jsonparser internally.
			v = string(value)
		case jsonparser.Number:
			f, err := strconv.ParseFloat(string(value), 64)
			if err != nil {
				return err
			}
			v = f
		case jsonparser.Boolean:
			v = string(value) == "true"
		case jsonparser.Null:
			v = nil
		default:
			v = string(value)
		}
		rec.Fields = append(rec.Fields, Field{Name: string(key), Value: v})
		return nil
	})
	if err != nil {
		return nil, model.NewFault(model.KindCorrupted, "zerocopypolyglot.deserialize", err)
	}

	return rec, nil
}
