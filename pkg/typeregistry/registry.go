package typeregistry

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/commy-mesh/commy/pkg/model"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*model.TypeEntry
}

// Registry is a sharded concurrent map keyed by type name, each slot
// additionally fingerprinted by schema hash to detect conflicting
// registrations. Lookup takes only a shard's read lock; registration takes
// only that shard's write lock, so unrelated types never contend.
type Registry struct {
	shards [shardCount]*shard
}

// New builds an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]*model.TypeEntry)}
	}
	return r
}

func (r *Registry) shardFor(name string) *shard {
	h := xxhash.Sum64String(name)
	return r.shards[h%shardCount]
}

// Register inserts entry, or succeeds as a no-op if an identical
// (name, schema_hash) pair is already registered. A name already registered
// under a different schema hash fails with a SchemaConflict Fault.
func (r *Registry) Register(entry *model.TypeEntry) error {
	if entry.Name == "" {
		return model.NewFault(model.KindValidation, "typeregistry.register", model.ErrValidation).
			WithDetail("reason", "empty type name")
	}

	s := r.shardFor(entry.Name)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[entry.Name]
	if !ok {
		s.entries[entry.Name] = entry
		return nil
	}

	if existing.SchemaHash == entry.SchemaHash {
		return nil
	}

	return model.NewFault(model.KindSchemaConflict, "typeregistry.register", model.ErrSchemaConflict).
		WithDetail("type_name", entry.Name).
		WithDetail("existing_hash", existing.SchemaHash).
		WithDetail("incoming_hash", entry.SchemaHash)
}

// Lookup returns the TypeEntry registered under name, if any.
func (r *Registry) Lookup(name string) (*model.TypeEntry, bool) {
	s := r.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	return entry, ok
}

// DrainCheck reports whether name is still referenced by a live region; it
// gates Remove and is supplied by the caller (the shared-file store knows
// which types its regions advertise, the registry does not).
type DrainCheck func(name string) (stillReferenced bool)

// Remove unregisters name, refusing while check reports it still
// referenced. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string, check DrainCheck) error {
	s := r.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return nil
	}

	if check != nil && check(name) {
		return model.NewFault(model.KindValidation, "typeregistry.remove", nil).
			WithDetail("reason", "type still referenced by a live region").
			WithDetail("type_name", name)
	}

	delete(s.entries, name)
	return nil
}

// Count returns the number of registered type entries across all shards.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Names returns every registered type name. The returned slice is a copy.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.Count())
	for _, s := range r.shards {
		s.mu.RLock()
		for name := range s.entries {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	return names
}
