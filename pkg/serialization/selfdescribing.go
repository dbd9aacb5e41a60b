package serialization

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/commy-mesh/commy/pkg/model"
)

// SelfDescribingBackend is the cross-language, field-tagged backend. It
// uses protobuf's wire primitives directly (varint + tag/length framing)
// rather than codegen'd messages, so the wire format stays driven by a
// TypeEntry's declared fields instead of a .proto file.
type SelfDescribingBackend struct{}

func NewSelfDescribingBackend() *SelfDescribingBackend { return &SelfDescribingBackend{} }

func (b *SelfDescribingBackend) Name() string             { return "self-describing-binary" }
func (b *SelfDescribingBackend) Format() model.FormatFlags { return model.FormatSelfDescribingBinary }

func (b *SelfDescribingBackend) Serialize(value *Record, out []byte) (int, error) {
	var buf []byte
	for i, f := range value.Fields {
		num := protowire.Number(i + 1)
		switch v := f.Value.(type) {
		case string:
			buf = protowire.AppendTag(buf, num, protowire.BytesType)
			buf = protowire.AppendString(buf, v)
		case []byte:
			buf = protowire.AppendTag(buf, num, protowire.BytesType)
			buf = protowire.AppendBytes(buf, v)
		case uint64:
			buf = protowire.AppendTag(buf, num, protowire.VarintType)
			buf = protowire.AppendVarint(buf, v)
		case int64:
			buf = protowire.AppendTag(buf, num, protowire.VarintType)
			buf = protowire.AppendVarint(buf, uint64(v))
		case bool:
			buf = protowire.AppendTag(buf, num, protowire.VarintType)
			if v {
				buf = protowire.AppendVarint(buf, 1)
			} else {
				buf = protowire.AppendVarint(buf, 0)
			}
		case float64:
			buf = protowire.AppendTag(buf, num, protowire.Fixed64Type)
			buf = protowire.AppendFixed64(buf, math.Float64bits(v))
		default:
			return 0, model.NewFault(model.KindIncompatibleFormat, "selfdescribing.serialize",
				fmt.Errorf("unsupported field type %T", v))
		}
	}

	if len(buf) > len(out) {
		return 0, model.NewFault(model.KindCapacityExceeded, "selfdescribing.serialize", model.ErrCapacityExceeded).
			WithDetail("needed", len(buf)).WithDetail("have", len(out))
	}
	return copy(out, buf), nil
}

func (b *SelfDescribingBackend) Deserialize(data []byte) (*Record, error) {
	rec := &Record{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, model.NewFault(model.KindCorrupted, "selfdescribing.deserialize", protowire.ParseError(n))
		}
		data = data[n:]

		name := fmt.Sprintf("f%d", num)
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, model.NewFault(model.KindCorrupted, "selfdescribing.deserialize", protowire.ParseError(n))
			}
			data = data[n:]
			rec.Fields = append(rec.Fields, Field{Name: name, Value: v})
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, model.NewFault(model.KindCorrupted, "selfdescribing.deserialize", protowire.ParseError(n))
			}
			data = data[n:]
			rec.Fields = append(rec.Fields, Field{Name: name, Value: math.Float64frombits(v)})
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, model.NewFault(model.KindCorrupted, "selfdescribing.deserialize", protowire.ParseError(n))
			}
			data = data[n:]
			rec.Fields = append(rec.Fields, Field{Name: name, Value: string(v)})
		default:
			return nil, model.NewFault(model.KindCorrupted, "selfdescribing.deserialize",
				fmt.Errorf("unsupported wire type %v", typ))
		}
	}

	return rec, nil
}
