// Package trace carries request tracing identity (the X-Request-ID value and
// the W3C trace context pair) through context.Context and injects it into
// outgoing header carriers.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// contextKey scopes this package's context values to avoid collisions.
type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	traceParentKey contextKey = "traceparent"
	traceStateKey  contextKey = "tracestate"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = "tracestate"
)

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns the trace ID stored in ctx, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	return lookup(ctx, traceIDKey)
}

// EnsureTraceID returns the context's trace ID, or a fresh UUID when none is set.
func EnsureTraceID(ctx context.Context) string {
	if traceID, ok := IDFromContext(ctx); ok {
		return traceID
	}
	return uuid.New().String()
}

// WithTraceParent returns a context carrying a W3C traceparent value.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns the traceparent stored in ctx, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	return lookup(ctx, traceParentKey)
}

// WithTraceState returns a context carrying a W3C tracestate value.
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// StateFromContext returns the tracestate stored in ctx, if any.
func StateFromContext(ctx context.Context) (string, bool) {
	return lookup(ctx, traceStateKey)
}

// lookup reads a non-empty string value for key. Empty strings count as absent.
func lookup(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// GenerateTraceParent mints a minimal W3C traceparent header value in the
// form version(2)-trace-id(32)-span-id(16)-flags(2), sampled: "00-<32>-<16>-01".
func GenerateTraceParent() string {
	// 16-byte trace ID followed by an 8-byte span ID
	var ids [24]byte
	if _, err := crand.Read(ids[:]); err != nil {
		ids = [24]byte{}
	}
	// The W3C spec forbids all-zero trace and span IDs
	if isZero(ids[:16]) {
		ids[15] = 0x01
	}
	if isZero(ids[16:]) {
		ids[23] = 0x01
	}
	return "00-" + hex.EncodeToString(ids[:16]) + "-" + hex.EncodeToString(ids[16:]) + "-01"
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
