package trace

import (
	"context"
	"fmt"
	"strings"
)

// HeaderAccessor abstracts a mutable string-keyed header carrier so trace
// propagation works against http.Header, AMQP tables, or plain maps without
// this package depending on any of them.
type HeaderAccessor interface {
	Get(key string) interface{}
	Set(key string, value interface{})
}

// InjectMode controls how injection treats values already present on the carrier.
type InjectMode int

const (
	// InjectPreserve fills only headers that are absent or empty.
	InjectPreserve InjectMode = iota
	// InjectOverwrite replaces carrier values with the context values.
	InjectOverwrite
)

// InjectOptions configures InjectIntoHeadersWithOptions.
type InjectOptions struct {
	Mode InjectMode
}

// InjectIntoHeaders copies the context's trace identity onto the carrier,
// preserving values the carrier already has.
func InjectIntoHeaders(ctx context.Context, headers HeaderAccessor) {
	InjectIntoHeadersWithOptions(ctx, headers, InjectOptions{Mode: InjectPreserve})
}

// InjectIntoHeadersWithOptions copies the context's trace identity
// (X-Request-ID, traceparent, tracestate) onto the carrier. When no trace ID
// is known but a traceparent is, the request ID is derived from the
// traceparent's trace-id field so both headers agree.
func InjectIntoHeadersWithOptions(ctx context.Context, headers HeaderAccessor, opts InjectOptions) {
	overwrite := opts.Mode == InjectOverwrite

	parent := safeToString(headers.Get(HeaderTraceParent))
	if ctxParent, ok := ParentFromContext(ctx); ok && (overwrite || parent == "") {
		headers.Set(HeaderTraceParent, ctxParent)
		parent = ctxParent
	}

	if state, ok := StateFromContext(ctx); ok {
		if overwrite || safeToString(headers.Get(HeaderTraceState)) == "" {
			headers.Set(HeaderTraceState, state)
		}
	}

	id, ok := IDFromContext(ctx)
	if !ok {
		id = requestIDFromParent(parent)
	}
	if id != "" && (overwrite || safeToString(headers.Get(HeaderXRequestID)) == "") {
		headers.Set(HeaderXRequestID, id)
	}
}

// requestIDFromParent extracts the trace-id field of a W3C traceparent value,
// or "" when the value does not parse.
func requestIDFromParent(parent string) string {
	parts := strings.Split(parent, "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return ""
	}
	return parts[1]
}

func safeToString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
