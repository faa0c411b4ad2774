package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-httpclient/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = trace.HeaderTraceParent
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = trace.HeaderTraceState
)

// Client defines the REST client interface for making HTTP requests.
// Request bodies are not supported; use Do for methods beyond the shorthands.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Head(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request represents an HTTP request with all necessary data
type Request struct {
	URL     string
	Headers map[string]string
	Auth    *BasicAuth
}

// Response represents an HTTP response with tracking information.
// The body is fully buffered before the response is returned.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics. CallCount is the number of
// transport attempts performed for this call, so a request that succeeded on
// its first try reports 1 and one that retried twice reports 3.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// RetryPredicate decides whether a non-2xx response should be retried.
// The body is fully buffered before the predicate runs.
type RetryPredicate func(statusCode int, body []byte) bool

// Config holds the REST client configuration
type Config struct {
	// Timeout bounds each individual attempt (request build, round trip and
	// body read), not the whole call. Backoff waits between attempts are
	// bounded by the caller's context instead. It must be positive; a zero
	// timeout would expire every attempt context at birth.
	Timeout time.Duration `validate:"gt=0"`
	// MaxAttempts is the total attempt budget including the first try.
	// It must be at least 1; there is no "zero attempts" call.
	MaxAttempts int `validate:"min=1"`
	// BaseBackoff is the base delay for the full-jitter backoff between
	// attempts. Zero disables the delay while keeping the scheduler yield.
	BaseBackoff time.Duration `validate:"gte=0"`
	// RetryPredicate decides retries for non-2xx responses; nil falls back
	// to DefaultRetryPredicate (429 and the transient 5xx statuses).
	RetryPredicate       RetryPredicate
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// RateLimitRPS enables a client-side request limiter when > 0; every
	// attempt waits for a limiter slot before hitting the transport.
	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int `validate:"gte=0"`
	// TraceIDHeader configures the header name used for trace ID propagation (default: X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates a new trace ID when none is present (default: uuid)
	NewTraceID func() string
	// TraceIDExtractor allows advanced extraction of a trace ID from context; return ok=false to fallback to generator
	TraceIDExtractor func(_ context.Context) (traceID string, ok bool)
	// EnableW3CTrace enables W3C Trace Context (traceparent/tracestate) propagation and generation
	EnableW3CTrace bool
}

// Trace ID utility functions

// WithTraceID adds a trace ID to the context for HTTP client propagation
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return trace.WithTraceID(ctx, traceID)
}

// TraceIDFromContext returns a trace ID from context if present
func TraceIDFromContext(ctx context.Context) (string, bool) { return trace.IDFromContext(ctx) }

// EnsureTraceID returns an existing trace ID from context or generates a new one
func EnsureTraceID(ctx context.Context) string { return trace.EnsureTraceID(ctx) }

// GetTraceIDFromContext remains for backward compatibility; it ensures a non-empty value
func GetTraceIDFromContext(ctx context.Context) string { return EnsureTraceID(ctx) }

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return trace.WithTraceParent(ctx, traceParent)
}

// TraceParentFromContext returns a traceparent from context if present
func TraceParentFromContext(ctx context.Context) (string, bool) {
	return trace.ParentFromContext(ctx)
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return trace.WithTraceState(ctx, traceState)
}

// TraceStateFromContext returns a tracestate from context if present
func TraceStateFromContext(ctx context.Context) (string, bool) {
	return trace.StateFromContext(ctx)
}

// GenerateTraceParent creates a minimal W3C traceparent header value.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g., "00-<32>-<16>-01"
func GenerateTraceParent() string { return trace.GenerateTraceParent() }

// NewTraceIDInterceptor creates a request interceptor that adds trace ID headers
// This provides an alternative approach for users who want explicit control
func NewTraceIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderXRequestID) == "" {
			traceID := GetTraceIDFromContext(ctx)
			req.Header.Set(HeaderXRequestID, traceID)
		}
		return nil
	}
}

// NewTraceIDInterceptorFor creates an interceptor that uses a custom header name
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, GetTraceIDFromContext(ctx))
		}
		return nil
	}
}
