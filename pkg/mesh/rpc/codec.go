// Package rpc exposes the mesh coordinator's locate/select/health_of
// queries over grpc for inter-node calls between mesh coordinators. There
// is no .proto toolchain available in this environment, so messages are
// plain Go structs carried over grpc's pluggable codec mechanism instead of
// generated protobuf types: a "json" content-subtype codec is registered
// once, and every call negotiates it explicitly via CallContentSubtype.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
