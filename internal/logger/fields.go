package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Manager Operations
	// ========================================================================
	KeyOperation     = "operation"      // request_file, disconnect, list_active_files, locate, select, health_of
	KeyIdentifier    = "identifier"     // shared-file identifier
	KeyTypeName      = "type_name"      // registered type name
	KeySchemaHash    = "schema_hash"    // 64-bit schema hash
	KeyExistencePolicy = "existence_policy"
	KeyConnectionID  = "connection_id" // connection identifier assigned by the manager
	KeyCorrelationID = "correlation_id"
	KeyStatus        = "status"
	KeyStatusMsg     = "status_msg"

	// ========================================================================
	// Transport
	// ========================================================================
	KeyTransport      = "transport" // shared_memory or network
	KeyConfidence     = "confidence"
	KeyPeerAddr       = "peer_addr"
	KeyPeerID         = "peer_id"
	KeyFrameType      = "frame_type"
	KeyFrameLength    = "frame_length"
	KeyCircuitState   = "circuit_state"
	KeyAttempt        = "attempt"
	KeyMaxRetries     = "max_retries"

	// ========================================================================
	// Shared-File Store
	// ========================================================================
	KeyRegionPath  = "region_path"
	KeyRegionBytes = "region_bytes"
	KeySizeBytes   = "size_bytes"
	KeyRefCount    = "ref_count"

	// ========================================================================
	// Auth
	// ========================================================================
	KeyIdentity    = "identity"
	KeyPermissions = "permissions"
	KeyAuthFailure = "auth_failure_count"

	// ========================================================================
	// Plugin
	// ========================================================================
	KeyPluginPath    = "plugin_path"
	KeyPluginABI     = "plugin_abi_version"
	KeyQuarantined   = "quarantined"

	// ========================================================================
	// Mesh
	// ========================================================================
	KeyLBPolicy = "lb_policy"
	KeyNodeID   = "node_id"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorKind  = "error_kind"  // Fault Kind
	KeySource     = "source"      // component that emitted the log
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Manager Operations
// ----------------------------------------------------------------------------

// Operation returns a slog.Attr for the manager operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Identifier returns a slog.Attr for a shared-file identifier
func Identifier(id string) slog.Attr {
	return slog.String(KeyIdentifier, id)
}

// TypeName returns a slog.Attr for a registered type name
func TypeName(name string) slog.Attr {
	return slog.String(KeyTypeName, name)
}

// SchemaHash returns a slog.Attr for a 64-bit schema hash
func SchemaHash(hash uint64) slog.Attr {
	return slog.Uint64(KeySchemaHash, hash)
}

// ConnectionID returns a slog.Attr for a connection identifier
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// CorrelationID returns a slog.Attr for a correlation id
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// Status returns a slog.Attr for a human status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for a human-readable status message
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// ----------------------------------------------------------------------------
// Transport
// ----------------------------------------------------------------------------

// Transport returns a slog.Attr for the selected transport
func Transport(t string) slog.Attr {
	return slog.String(KeyTransport, t)
}

// Confidence returns a slog.Attr for a routing decision's confidence
func Confidence(c float64) slog.Attr {
	return slog.Float64(KeyConfidence, c)
}

// PeerAddr returns a slog.Attr for a remote peer address
func PeerAddr(addr string) slog.Attr {
	return slog.String(KeyPeerAddr, addr)
}

// PeerID returns a slog.Attr for a mesh peer identity
func PeerID(id string) slog.Attr {
	return slog.String(KeyPeerID, id)
}

// FrameType returns a slog.Attr for a wire frame's message type
func FrameType(t string) slog.Attr {
	return slog.String(KeyFrameType, t)
}

// FrameLength returns a slog.Attr for a wire frame's payload length
func FrameLength(n int) slog.Attr {
	return slog.Int(KeyFrameLength, n)
}

// CircuitState returns a slog.Attr for a circuit breaker state
func CircuitState(state string) slog.Attr {
	return slog.String(KeyCircuitState, state)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// ----------------------------------------------------------------------------
// Shared-File Store
// ----------------------------------------------------------------------------

// RegionPath returns a slog.Attr for a mapped region's backing path
func RegionPath(p string) slog.Attr {
	return slog.String(KeyRegionPath, p)
}

// RegionBytes returns a slog.Attr for a mapped region's allocated size
func RegionBytes(n uint64) slog.Attr {
	return slog.Uint64(KeyRegionBytes, n)
}

// SizeBytes returns a slog.Attr for a requested size in bytes
func SizeBytes(n uint64) slog.Attr {
	return slog.Uint64(KeySizeBytes, n)
}

// RefCount returns a slog.Attr for an entry's active connection count
func RefCount(n int) slog.Attr {
	return slog.Int(KeyRefCount, n)
}

// ----------------------------------------------------------------------------
// Auth
// ----------------------------------------------------------------------------

// Identity returns a slog.Attr for an authenticated identity
func Identity(id string) slog.Attr {
	return slog.String(KeyIdentity, id)
}

// AuthFailures returns a slog.Attr for a connection's consecutive auth failure count
func AuthFailures(n int) slog.Attr {
	return slog.Int(KeyAuthFailure, n)
}

// ----------------------------------------------------------------------------
// Plugin
// ----------------------------------------------------------------------------

// PluginPath returns a slog.Attr for a plugin's shared library path
func PluginPath(p string) slog.Attr {
	return slog.String(KeyPluginPath, p)
}

// PluginABI returns a slog.Attr for a plugin's reported ABI version
func PluginABI(v uint32) slog.Attr {
	return slog.Any(KeyPluginABI, v)
}

// Quarantined returns a slog.Attr marking a plugin as quarantined
func Quarantined(q bool) slog.Attr {
	return slog.Bool(KeyQuarantined, q)
}

// ----------------------------------------------------------------------------
// Mesh
// ----------------------------------------------------------------------------

// LBPolicy returns a slog.Attr for the active load-balancing policy
func LBPolicy(p string) slog.Attr {
	return slog.String(KeyLBPolicy, p)
}

// NodeID returns a slog.Attr for a mesh node identifier
func NodeID(id string) slog.Attr {
	return slog.String(KeyNodeID, id)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for a Fault Kind
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Source returns a slog.Attr for the emitting component
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}
