package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for manager and transport operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Peer attributes
	// ========================================================================
	AttrPeerAddr = "peer.address"
	AttrPeerID   = "peer.id"
	AttrPeerPort = "peer.port"

	// ========================================================================
	// Manager operation attributes
	// ========================================================================
	AttrOperation  = "manager.operation" // request_file, disconnect, locate, select, health_of
	AttrIdentifier = "sharedfile.identifier"
	AttrTypeName   = "sharedfile.type_name"
	AttrSchemaHash = "sharedfile.schema_hash"
	AttrSizeBytes  = "sharedfile.size_bytes"
	AttrRefCount   = "sharedfile.ref_count"
	AttrStatus     = "manager.status"
	AttrStatusMsg  = "manager.status_msg"

	// ========================================================================
	// Transport attributes
	// ========================================================================
	AttrTransport    = "transport.kind" // shared_file or network
	AttrConfidence   = "transport.confidence"
	AttrFrameType    = "transport.frame_type"
	AttrFrameLength  = "transport.frame_length"
	AttrCircuitState = "transport.circuit_state"
	AttrAttempt      = "transport.attempt"
	AttrMaxRetries   = "transport.max_retries"

	// ========================================================================
	// Auth attributes
	// ========================================================================
	AttrIdentity    = "auth.identity"
	AttrConnID      = "auth.connection_id"
	AttrPermissions = "auth.permissions"

	// ========================================================================
	// Plugin attributes
	// ========================================================================
	AttrPluginPath = "plugin.path"
	AttrPluginABI  = "plugin.abi_version"

	// ========================================================================
	// Mesh attributes
	// ========================================================================
	AttrLBPolicy = "mesh.lb_policy"
	AttrNodeID   = "mesh.node_id"

	// ========================================================================
	// Storage backend attributes (journal, SQL mirror, archival)
	// ========================================================================
	AttrStoreName = "store.name"
	AttrStoreType = "store.type" // badger, postgres, s3
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"
)

// Span names for manager, transport, and mesh operations.
const (
	// ========================================================================
	// Manager facade spans
	// ========================================================================
	SpanManagerRequestFile      = "manager.request_file"
	SpanManagerDisconnect       = "manager.disconnect"
	SpanManagerListActiveFiles  = "manager.list_active_files"
	SpanManagerSubscribeEvents  = "manager.subscribe_events"

	// ========================================================================
	// Transport selection and network spans
	// ========================================================================
	SpanSelectTransport = "selector.select_transport"
	SpanNetworkSend     = "network.send"
	SpanNetworkReceive  = "network.receive"
	SpanNetworkDial     = "network.dial"
	SpanNetworkHandshake = "network.handshake"

	// ========================================================================
	// Shared-file store spans
	// ========================================================================
	SpanSharedFileCreate  = "sharedfile.create"
	SpanSharedFileConnect = "sharedfile.connect"
	SpanSharedFileRetire  = "sharedfile.retire"
	SpanSharedFileGCSweep = "sharedfile.gc_sweep"

	// ========================================================================
	// Registry / plugin / allocator spans
	// ========================================================================
	SpanTypeRegister   = "typeregistry.register"
	SpanTypeLookup     = "typeregistry.lookup"
	SpanPluginLoad     = "plugin.load"
	SpanAllocatorAlloc = "idalloc.allocate"
	SpanAllocatorFree  = "idalloc.release"

	// ========================================================================
	// Auth spans
	// ========================================================================
	SpanAuthValidate = "auth.validate"

	// ========================================================================
	// Mesh coordinator spans
	// ========================================================================
	SpanMeshLocate   = "mesh.locate"
	SpanMeshSelect   = "mesh.select"
	SpanMeshHealthOf = "mesh.health_of"

	// ========================================================================
	// Persistence spans
	// ========================================================================
	SpanStoreAppendAudit  = "store.append_audit"
	SpanStoreSQLMirror    = "store.sql_mirror_write"
	SpanStoreArchiveUpload = "store.archive_upload"
)

// PeerAddr returns an attribute for peer address
func PeerAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrPeerAddr, addr)
}

// PeerID returns an attribute for mesh peer identity
func PeerID(id string) attribute.KeyValue {
	return attribute.String(AttrPeerID, id)
}

// Operation returns an attribute for the manager operation name
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Identifier returns an attribute for a shared-file identifier
func Identifier(id string) attribute.KeyValue {
	return attribute.String(AttrIdentifier, id)
}

// TypeName returns an attribute for a registered type name
func TypeName(name string) attribute.KeyValue {
	return attribute.String(AttrTypeName, name)
}

// SchemaHash returns an attribute for a 64-bit schema hash
func SchemaHash(hash uint64) attribute.KeyValue {
	return attribute.Int64(AttrSchemaHash, int64(hash))
}

// SizeBytes returns an attribute for a region size in bytes
func SizeBytes(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrSizeBytes, int64(size))
}

// RefCount returns an attribute for an entry's active connection count
func RefCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRefCount, n)
}

// Status returns an attribute for a manager status code
func Status(status int) attribute.KeyValue {
	return attribute.Int(AttrStatus, status)
}

// StatusMsg returns an attribute for a human-readable status message
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// Transport returns an attribute for the selected transport
func Transport(kind string) attribute.KeyValue {
	return attribute.String(AttrTransport, kind)
}

// Confidence returns an attribute for a routing decision's confidence
func Confidence(c float64) attribute.KeyValue {
	return attribute.Float64(AttrConfidence, c)
}

// FrameType returns an attribute for a wire frame's message type
func FrameType(t string) attribute.KeyValue {
	return attribute.String(AttrFrameType, t)
}

// FrameLength returns an attribute for a wire frame's payload length
func FrameLength(n int) attribute.KeyValue {
	return attribute.Int64(AttrFrameLength, int64(n))
}

// CircuitState returns an attribute for a circuit breaker state
func CircuitState(state string) attribute.KeyValue {
	return attribute.String(AttrCircuitState, state)
}

// Attempt returns an attribute for a retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// MaxRetries returns an attribute for the maximum retry attempts
func MaxRetries(n int) attribute.KeyValue {
	return attribute.Int(AttrMaxRetries, n)
}

// Identity returns an attribute for an authenticated identity
func Identity(id string) attribute.KeyValue {
	return attribute.String(AttrIdentity, id)
}

// ConnectionID returns an attribute for a connection identifier
func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnID, id)
}

// PluginPath returns an attribute for a plugin's shared library path
func PluginPath(p string) attribute.KeyValue {
	return attribute.String(AttrPluginPath, p)
}

// PluginABI returns an attribute for a plugin's reported ABI version
func PluginABI(v uint32) attribute.KeyValue {
	return attribute.Int64(AttrPluginABI, int64(v))
}

// LBPolicy returns an attribute for the active load-balancing policy
func LBPolicy(p string) attribute.KeyValue {
	return attribute.String(AttrLBPolicy, p)
}

// NodeID returns an attribute for a mesh node identifier
func NodeID(id string) attribute.KeyValue {
	return attribute.String(AttrNodeID, id)
}

// StoreName returns an attribute for a store/journal name
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute for a store type
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// FormatHex renders a byte slice (e.g. a correlation id) as a hex attribute value.
func FormatHex(label string, b []byte) attribute.KeyValue {
	return attribute.String(label, fmt.Sprintf("%x", b))
}

// StartManagerSpan starts a span for a manager facade operation.
func StartManagerSpan(ctx context.Context, operation, identifier string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Operation(operation)}
	if identifier != "" {
		allAttrs = append(allAttrs, Identifier(identifier))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "manager."+operation, trace.WithAttributes(allAttrs...))
}

// StartTransportSpan starts a span for a transport-layer operation.
func StartTransportSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "transport."+operation, trace.WithAttributes(attrs...))
}

// StartMeshSpan starts a span for a mesh coordinator query.
func StartMeshSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "mesh."+operation, trace.WithAttributes(attrs...))
}
