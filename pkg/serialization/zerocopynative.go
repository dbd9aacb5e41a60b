package serialization

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/commy-mesh/commy/pkg/model"
)

// ZeroCopyNativeBackend is the archived-layout backend: a fixed field
// table of (kind, offset, length) relative to the buffer's own base,
// followed by the raw field bytes. Deserialize returns a Record whose
// []byte field values are slices into the original bytes — no copy, no
// pointer that could ever point outside the buffer. String fields are
// copied out of the buffer; numeric and bool fields are decoded by value.
type ZeroCopyNativeBackend struct{}

func NewZeroCopyNativeBackend() *ZeroCopyNativeBackend { return &ZeroCopyNativeBackend{} }

func (b *ZeroCopyNativeBackend) Name() string             { return "zero-copy-native" }
func (b *ZeroCopyNativeBackend) Format() model.FormatFlags { return model.FormatZeroCopyNative }

// nativeEntry is one row of the field table: 1-byte kind, 4-byte offset,
// 4-byte length, all relative to the start of the payload area.
const nativeEntrySize = 1 + 4 + 4

func (b *ZeroCopyNativeBackend) Serialize(value *Record, out []byte) (int, error) {
	tableSize := 4 + len(value.Fields)*nativeEntrySize // 4-byte field count header
	offset := tableSize
	payloads := make([][]byte, len(value.Fields))
	kinds := make([]fieldKind, len(value.Fields))

	for i, f := range value.Fields {
		k, err := kindOf(f.Value)
		if err != nil {
			return 0, model.NewFault(model.KindIncompatibleFormat, "zerocopynative.serialize", err)
		}
		kinds[i] = k
		payloads[i] = encodeNativeValue(k, f.Value)
	}

	total := tableSize
	for _, p := range payloads {
		total += len(p)
	}
	if total > len(out) {
		return 0, model.NewFault(model.KindCapacityExceeded, "zerocopynative.serialize", model.ErrCapacityExceeded).
			WithDetail("needed", total).WithDetail("have", len(out))
	}

	binary.BigEndian.PutUint32(out[0:4], uint32(len(value.Fields)))
	rowOff := 4
	for i, p := range payloads {
		row := out[rowOff : rowOff+nativeEntrySize]
		row[0] = byte(kinds[i])
		binary.BigEndian.PutUint32(row[1:5], uint32(offset))
		binary.BigEndian.PutUint32(row[5:9], uint32(len(p)))
		copy(out[offset:offset+len(p)], p)
		offset += len(p)
		rowOff += nativeEntrySize
	}

	return offset, nil
}

func (b *ZeroCopyNativeBackend) Deserialize(data []byte) (*Record, error) {
	if len(data) < 4 {
		return nil, model.NewFault(model.KindCorrupted, "zerocopynative.deserialize", fmt.Errorf("buffer too short for field table header"))
	}
	count := int(binary.BigEndian.Uint32(data[0:4]))
	tableSize := 4 + count*nativeEntrySize
	if len(data) < tableSize {
		return nil, model.NewFault(model.KindCorrupted, "zerocopynative.deserialize", fmt.Errorf("buffer too short for %d field entries", count))
	}

	rec := &Record{}
	rowOff := 4
	for i := 0; i < count; i++ {
		row := data[rowOff : rowOff+nativeEntrySize]
		kind := fieldKind(row[0])
		off := int(binary.BigEndian.Uint32(row[1:5]))
		length := int(binary.BigEndian.Uint32(row[5:9]))
		if off+length > len(data) {
			return nil, model.NewFault(model.KindCorrupted, "zerocopynative.deserialize", fmt.Errorf("field %d offset out of range", i))
		}

		view := data[off : off+length : off+length] // sliced with cap pinned, no copy
		value, err := decodeNativeValue(kind, view)
		if err != nil {
			return nil, model.NewFault(model.KindCorrupted, "zerocopynative.deserialize", err)
		}
		rec.Fields = append(rec.Fields, Field{Value: value})
		rowOff += nativeEntrySize
	}

	// Every []byte field value above is a slice into data itself; the
	// caller must keep data alive for as long as those values are read.
	return rec, nil
}

func encodeNativeValue(k fieldKind, v any) []byte {
	switch k {
	case kindString:
		return []byte(v.(string))
	case kindBytes:
		return v.([]byte)
	case kindUint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v.(uint64))
		return b
	case kindInt64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.(int64)))
		return b
	case kindFloat64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.(float64)))
		return b
	case kindBool:
		if v.(bool) {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

func decodeNativeValue(k fieldKind, view []byte) (any, error) {
	switch k {
	case kindString:
		return string(view), nil
	case kindBytes:
		return view, nil
	case kindUint64:
		return binary.BigEndian.Uint64(view), nil
	case kindInt64:
		return int64(binary.BigEndian.Uint64(view)), nil
	case kindFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(view)), nil
	case kindBool:
		return view[0] != 0, nil
	default:
		return nil, fmt.Errorf("zero-copy-native: unknown field kind %d", k)
	}
}
