package serialization

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/commy-mesh/commy/pkg/model"
)

// CompactBinaryBackend is the length-prefixed, declaration-order backend.
// Each field is framed as a one-byte kind tag, an XDR-encoded length, and
// an XDR-encoded payload, so the actual scalar encoding reuses go-xdr's
// wire rules while the field framing stays self-contained (XDR itself has
// no notion of a field name or kind tag).
type CompactBinaryBackend struct{}

func NewCompactBinaryBackend() *CompactBinaryBackend { return &CompactBinaryBackend{} }

func (b *CompactBinaryBackend) Name() string             { return "compact-binary" }
func (b *CompactBinaryBackend) Format() model.FormatFlags { return model.FormatCompactBinary }

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindUint64
	kindInt64
	kindFloat64
	kindBool
	kindBytes
)

func kindOf(v any) (fieldKind, error) {
	switch v.(type) {
	case string:
		return kindString, nil
	case uint64:
		return kindUint64, nil
	case int64:
		return kindInt64, nil
	case float64:
		return kindFloat64, nil
	case bool:
		return kindBool, nil
	case []byte:
		return kindBytes, nil
	default:
		return 0, fmt.Errorf("compact-binary: unsupported field type %T", v)
	}
}

func (b *CompactBinaryBackend) Serialize(value *Record, out []byte) (int, error) {
	var buf bytes.Buffer

	for _, f := range value.Fields {
		k, err := kindOf(f.Value)
		if err != nil {
			return 0, model.NewFault(model.KindIncompatibleFormat, "compactbinary.serialize", err)
		}
		buf.WriteByte(byte(k))

		var payload bytes.Buffer
		if _, err := xdr.Marshal(&payload, f.Value); err != nil {
			return 0, model.NewFault(model.KindValidation, "compactbinary.serialize", err)
		}
		if _, err := xdr.Marshal(&buf, uint32(payload.Len())); err != nil {
			return 0, model.NewFault(model.KindValidation, "compactbinary.serialize", err)
		}
		buf.Write(payload.Bytes())
	}

	if buf.Len() > len(out) {
		return 0, model.NewFault(model.KindCapacityExceeded, "compactbinary.serialize", model.ErrCapacityExceeded).
			WithDetail("needed", buf.Len()).WithDetail("have", len(out))
	}
	return copy(out, buf.Bytes()), nil
}

func (b *CompactBinaryBackend) Deserialize(data []byte) (*Record, error) {
	r := bytes.NewReader(data)
	rec := &Record{}

	for r.Len() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, model.NewFault(model.KindCorrupted, "compactbinary.deserialize", err)
		}

		var length uint32
		if _, err := xdr.Unmarshal(r, &length); err != nil {
			return nil, model.NewFault(model.KindCorrupted, "compactbinary.deserialize", err)
		}

		payload := make([]byte, length)
		if _, err := r.Read(payload); err != nil {
			return nil, model.NewFault(model.KindCorrupted, "compactbinary.deserialize", err)
		}
		pr := bytes.NewReader(payload)

		var value any
		switch fieldKind(kindByte) {
		case kindString:
			var s string
			_, err = xdr.Unmarshal(pr, &s)
			value = s
		case kindUint64:
			var u uint64
			_, err = xdr.Unmarshal(pr, &u)
			value = u
		case kindInt64:
			var i int64
			_, err = xdr.Unmarshal(pr, &i)
			value = i
		case kindFloat64:
			var f float64
			_, err = xdr.Unmarshal(pr, &f)
			value = f
		case kindBool:
			var bo bool
			_, err = xdr.Unmarshal(pr, &bo)
			value = bo
		case kindBytes:
			var by []byte
			_, err = xdr.Unmarshal(pr, &by)
			value = by
		default:
			err = fmt.Errorf("compact-binary: unknown field kind %d", kindByte)
		}
		if err != nil {
			return nil, model.NewFault(model.KindCorrupted, "compactbinary.deserialize", err)
		}

		rec.Fields = append(rec.Fields, Field{Value: value})
	}

	return rec, nil
}
