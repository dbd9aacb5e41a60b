package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	TraceID      string    // OpenTelemetry trace ID
	SpanID       string    // OpenTelemetry span ID
	Operation    string    // manager operation: request_file, disconnect, locate, etc.
	Identifier   string    // shared-file identifier
	PeerAddr     string    // remote peer address (without port)
	Identity     string    // authenticated identity (subject claim)
	ConnectionID string    // connection identifier assigned by the manager
	CorrelationID string   // correlation id assigned to a request
	StartTime    time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given peer address
func NewLogContext(peerAddr string) *LogContext {
	return &LogContext{
		PeerAddr:  peerAddr,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:       lc.TraceID,
		SpanID:        lc.SpanID,
		Operation:     lc.Operation,
		Identifier:    lc.Identifier,
		PeerAddr:      lc.PeerAddr,
		Identity:      lc.Identity,
		ConnectionID:  lc.ConnectionID,
		CorrelationID: lc.CorrelationID,
		StartTime:     lc.StartTime,
	}
}

// WithOperation returns a copy with the operation set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithIdentifier returns a copy with the shared-file identifier set
func (lc *LogContext) WithIdentifier(identifier string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Identifier = identifier
	}
	return clone
}

// WithIdentity returns a copy with the authenticated identity and connection id set
func (lc *LogContext) WithIdentity(identity, connectionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Identity = identity
		clone.ConnectionID = connectionID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
