package plugin

import (
	"testing"

	"github.com/commy-mesh/commy/pkg/model"
	"github.com/commy-mesh/commy/pkg/typeregistry"
)

func TestHashSchema_Deterministic(t *testing.T) {
	a := HashSchema("type Foo { id: u64 name: string }")
	b := HashSchema("type Foo { id: u64 name: string }")
	if a != b {
		t.Fatalf("expected identical schema text to hash identically, got %d vs %d", a, b)
	}
}

func TestHashSchema_DiffersOnChange(t *testing.T) {
	a := HashSchema("type Foo { id: u64 }")
	b := HashSchema("type Foo { id: u64 name: string }")
	if a == b {
		t.Fatal("expected different schema text to hash differently")
	}
}

func TestQuarantine_UnknownPathIsNoop(t *testing.T) {
	l := New(typeregistry.New())
	l.quarantine("/nonexistent.so")
	if l.Quarantined("/nonexistent.so") {
		t.Fatal("unknown path should not report quarantined")
	}
}

func TestQuarantine_MarksLoadedHandle(t *testing.T) {
	l := New(typeregistry.New())
	l.handles["/fake.so"] = &Handle{Path: "/fake.so", Types: []string{"Foo"}}

	l.quarantine("/fake.so")

	if !l.Quarantined("/fake.so") {
		t.Fatal("expected handle to be quarantined")
	}
}

func TestUnload_RefusesWhileReferenced(t *testing.T) {
	reg := typeregistry.New()
	_ = reg.Register(&model.TypeEntry{Name: "Foo", SchemaHash: 1})
	l := New(reg)
	l.handles["/fake.so"] = &Handle{Path: "/fake.so", Types: []string{"Foo"}}

	err := l.Unload("/fake.so", func(name string) bool { return true })
	if err == nil {
		t.Fatal("expected Unload to refuse while Foo is still referenced")
	}
	if _, ok := reg.Lookup("Foo"); !ok {
		t.Fatal("Foo should remain registered after refused unload")
	}
}

func TestUnload_SucceedsWhenDrained(t *testing.T) {
	reg := typeregistry.New()
	_ = reg.Register(&model.TypeEntry{Name: "Foo", SchemaHash: 1})
	l := New(reg)
	l.handles["/fake.so"] = &Handle{Path: "/fake.so", Types: []string{"Foo"}}

	err := l.Unload("/fake.so", func(name string) bool { return false })
	if err != nil {
		t.Fatalf("expected Unload to succeed once drained: %v", err)
	}
	if _, ok := reg.Lookup("Foo"); ok {
		t.Fatal("Foo should be removed after successful unload")
	}
}

func TestUnload_UnknownPathIsNoop(t *testing.T) {
	l := New(typeregistry.New())
	if err := l.Unload("/nonexistent.so", nil); err != nil {
		t.Fatalf("expected no-op for unknown path, got: %v", err)
	}
}
