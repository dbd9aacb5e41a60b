// Package typeregistry is C1 from the design: a concurrent map of
// (type_name, schema_hash) -> TypeEntry, consulted by the serialization
// layer before it falls back to a backend's generic path.
package typeregistry
