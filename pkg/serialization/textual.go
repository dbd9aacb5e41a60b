package serialization

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/commy-mesh/commy/pkg/model"
)

// TextualBackend is the human-readable backend: stable declaration-order
// keys, UTF-8 output, built on yaml.v3's Node API so field order is
// preserved instead of sorted alphabetically.
type TextualBackend struct{}

func NewTextualBackend() *TextualBackend { return &TextualBackend{} }

func (b *TextualBackend) Name() string            { return "textual" }
func (b *TextualBackend) Format() model.FormatFlags { return model.FormatTextual }

func (b *TextualBackend) Serialize(value *Record, out []byte) (int, error) {
	node := recordToYAMLNode(value)
	data, err := yaml.Marshal(node)
	if err != nil {
		return 0, model.NewFault(model.KindValidation, "textual.serialize", err)
	}
	if len(data) > len(out) {
		return 0, model.NewFault(model.KindCapacityExceeded, "textual.serialize", model.ErrCapacityExceeded).
			WithDetail("needed", len(data)).WithDetail("have", len(out))
	}
	return copy(out, data), nil
}

func (b *TextualBackend) Deserialize(data []byte) (*Record, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, model.NewFault(model.KindCorrupted, "textual.deserialize", err)
	}
	if len(node.Content) == 0 {
		return nil, model.NewFault(model.KindCorrupted, "textual.deserialize", fmt.Errorf("empty document"))
	}
	return yamlNodeToRecord(node.Content[0]), nil
}

// recordToYAMLNode builds a mapping node with keys in field declaration
// order; yaml.v3's Node API (unlike plain Marshal on a map) preserves that
// order on output instead of sorting keys.
func recordToYAMLNode(r *Record) *yaml.Node {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range r.Fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Name}
		var val yaml.Node
		_ = val.Encode(f.Value)
		mapping.Content = append(mapping.Content, key, &val)
	}
	return mapping
}

func yamlNodeToRecord(n *yaml.Node) *Record {
	rec := &Record{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		var v any
		_ = n.Content[i+1].Decode(&v)
		rec.Fields = append(rec.Fields, Field{Name: key, Value: v})
	}
	return rec
}
