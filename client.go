package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-httpclient/logger"
	"github.com/gaborage/go-httpclient/trace"
)

const (
	// DefaultTimeout is the default per-attempt timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the default total attempt budget (single try, no retries)
	DefaultMaxAttempts = 1

	// DefaultBaseBackoff is the default base delay between attempts
	DefaultBaseBackoff = 1 * time.Second
)

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	limiter              *rate.Limiter
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return newClient(defaultConfig(), log, newDefaultHTTPClient())
}

// NewClientWithConfig creates a client from a fully specified configuration,
// typically produced by LoadConfig or ParseConfig.
func NewClientWithConfig(cfg *Config, log logger.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, log, newDefaultHTTPClient()), nil
}

func newClient(cfg *Config, log logger.Logger, httpClient *nethttp.Client) *client {
	c := &client{
		httpClient:           httpClient,
		logger:               log,
		config:               cfg,
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c
}

// newDefaultHTTPClient returns the transport stack used when the caller does
// not supply one. cleanhttp hands out a client detached from the net/http
// package globals with keep-alives disabled. No client-level timeout is set;
// the per-attempt contexts own the deadline.
func newDefaultHTTPClient() *nethttp.Client {
	return cleanhttp.DefaultClient()
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config     *Config
	logger     logger.Logger
	transport  nethttp.RoundTripper
	httpClient *nethttp.Client
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry configuration. maxAttempts is the total attempt
// budget including the first try; baseBackoff seeds the jittered exponential
// delay between attempts.
func (b *Builder) WithRetries(maxAttempts int, baseBackoff time.Duration) *Builder {
	b.config.MaxAttempts = maxAttempts
	b.config.BaseBackoff = baseBackoff
	return b
}

// WithRetryPredicate overrides the decision of which non-2xx responses are
// retried. The predicate receives the status code and the buffered body.
func (b *Builder) WithRetryPredicate(predicate RetryPredicate) *Builder {
	if predicate != nil {
		b.config.RetryPredicate = predicate
	}
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithHTTPClient replaces the underlying *http.Client entirely. The client is
// used as provided; its transport and timeout are left untouched.
func (b *Builder) WithHTTPClient(httpClient *nethttp.Client) *Builder {
	b.httpClient = httpClient
	return b
}

// WithTransport sets the RoundTripper on the default HTTP client. Ignored
// when WithHTTPClient is also used.
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.transport = transport
	return b
}

// WithRateLimit enables a client-side limiter: every attempt waits for a slot
// before hitting the transport. rps <= 0 disables the limiter; a burst below
// 1 is raised to 1.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.config.RateLimitRPS = rps
	b.config.RateLimitBurst = burst
	return b
}

// WithPayloadLogging enables debug-level logging of request and response
// payloads, with the response body preview capped at maxBytes.
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithTraceIDHeader overrides the header used for trace ID propagation.
// Empty values are ignored.
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	if header != "" {
		b.config.TraceIDHeader = header
	}
	return b
}

// WithTraceIDGenerator overrides how new trace IDs are minted when neither
// the request nor the context carries one. Nil values are ignored.
func (b *Builder) WithTraceIDGenerator(generator func() string) *Builder {
	if generator != nil {
		b.config.NewTraceID = generator
	}
	return b
}

// WithTraceIDExtractor overrides how a trace ID is pulled from the context.
// Nil values are ignored.
func (b *Builder) WithTraceIDExtractor(extractor func(ctx context.Context) (string, bool)) *Builder {
	if extractor != nil {
		b.config.TraceIDExtractor = extractor
	}
	return b
}

// WithW3CTrace toggles W3C Trace Context (traceparent/tracestate) propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = newDefaultHTTPClient()
		if b.transport != nil {
			httpClient.Transport = b.transport
		}
	}
	return newClient(b.config, b.logger, httpClient)
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Head performs a HEAD request
func (c *client) Head(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodHead, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	traceID := c.resolveTraceID(ctx, req)
	return c.execute(ctx, method, req, traceID)
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

// resolveTraceID picks the trace ID once per logical call so every attempt of
// the call carries the same value. Precedence: explicit request header, then
// the configured extractor, then the generator.
func (c *client) resolveTraceID(ctx context.Context, req *Request) string {
	header := c.traceIDHeader()
	for key, value := range req.Headers {
		if strings.EqualFold(key, header) && value != "" {
			return value
		}
	}
	if c.config.TraceIDExtractor != nil {
		if id, ok := c.config.TraceIDExtractor(ctx); ok && id != "" {
			return id
		}
	}
	if c.config.NewTraceID != nil {
		return c.config.NewTraceID()
	}
	return trace.EnsureTraceID(ctx)
}

func (c *client) traceIDHeader() string {
	if c.config.TraceIDHeader != "" {
		return c.config.TraceIDHeader
	}
	return trace.HeaderXRequestID
}

// buildRequest constructs an *http.Request, applies headers, auth and trace
// headers, and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, method string, req *Request, traceID string) (*nethttp.Request, error) {
	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, nethttp.NoBody)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to create HTTP request: %v", err), "request")
	}

	c.applyHeaders(httpReq, req)
	c.applyAuth(httpReq, req)
	c.injectTrace(ctx, httpReq, traceID)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request) {
	// Apply default headers first
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
}

// applyAuth applies authentication to the HTTP request
func (c *client) applyAuth(httpReq *nethttp.Request, req *Request) {
	// Request-specific auth takes precedence
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}

	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// injectTrace stamps trace headers on the outgoing request. The trace ID is
// stable across the whole call; the W3C traceparent comes from the context
// when present and is minted fresh per attempt otherwise, so every attempt
// gets its own span ID.
func (c *client) injectTrace(ctx context.Context, httpReq *nethttp.Request, traceID string) {
	header := c.traceIDHeader()
	if traceID != "" && httpReq.Header.Get(header) == "" {
		httpReq.Header.Set(header, traceID)
	}

	if !c.config.EnableW3CTrace {
		return
	}
	if httpReq.Header.Get(trace.HeaderTraceParent) == "" {
		parent, ok := trace.ParentFromContext(ctx)
		if !ok || parent == "" {
			parent = trace.GenerateTraceParent()
		}
		httpReq.Header.Set(trace.HeaderTraceParent, parent)
	}
	if httpReq.Header.Get(trace.HeaderTraceState) == "" {
		if state, ok := trace.StateFromContext(ctx); ok && state != "" {
			httpReq.Header.Set(trace.HeaderTraceState, state)
		}
	}
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}
