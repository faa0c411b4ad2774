package httpclient

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-httpclient/trace"
)

// envPrefix namespaces the environment variables read by LoadConfig, e.g.
// HTTP_CLIENT_RETRY_ATTEMPTS maps to the retry.attempts key.
const envPrefix = "HTTP_CLIENT_"

var configValidator = validator.New()

// DefaultRetryPredicate retries on 429 and the transient 5xx statuses
// (500, 502, 503, 504). The response body is ignored.
func DefaultRetryPredicate(statusCode int, _ []byte) bool {
	switch statusCode {
	case nethttp.StatusTooManyRequests,
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Validate checks the configuration invariants and returns a validation
// error naming the first offending field.
func (c *Config) Validate() error {
	if c == nil {
		return NewValidationError("configuration is required", "config")
	}
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return NewValidationError(fmt.Sprintf("invalid value for %s (%s)", fe.Field(), fe.Tag()), fe.Field())
		}
		return NewValidationError(err.Error(), "config")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxAttempts:          DefaultMaxAttempts,
		BaseBackoff:          DefaultBaseBackoff,
		RetryPredicate:       DefaultRetryPredicate,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
		MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		TraceIDHeader:        trace.HeaderXRequestID,
		NewTraceID:           newUUIDTraceID,
		TraceIDExtractor:     trace.IDFromContext,
		EnableW3CTrace:       true,
	}
}

func newUUIDTraceID() string {
	return uuid.New().String()
}

// fileConfig mirrors the YAML/env layout of the client configuration
type fileConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Retry   struct {
		Attempts int           `koanf:"attempts"`
		Backoff  time.Duration `koanf:"backoff"`
	} `koanf:"retry"`
	RateLimit struct {
		RPS   float64 `koanf:"rps"`
		Burst int     `koanf:"burst"`
	} `koanf:"ratelimit"`
	Log struct {
		Payloads bool `koanf:"payloads"`
		MaxBytes int  `koanf:"maxbytes"`
	} `koanf:"log"`
	Trace struct {
		Header string `koanf:"header"`
		W3C    bool   `koanf:"w3c"`
	} `koanf:"trace"`
	Headers map[string]string `koanf:"headers"`
}

func configDefaults() map[string]any {
	return map[string]any{
		"timeout":         "30s",
		"retry.attempts":  DefaultMaxAttempts,
		"retry.backoff":   "1s",
		"ratelimit.rps":   0.0,
		"ratelimit.burst": 0,
		"log.payloads":    false,
		"log.maxbytes":    DefaultMaxPayloadLogBytes,
		"trace.header":    trace.HeaderXRequestID,
		"trace.w3c":       true,
	}
}

// LoadConfig loads client configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. The YAML configuration file at path, when path is non-empty
// 3. Default values (lowest priority)
// A non-empty path that cannot be loaded is an error.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(configDefaults(), "."), nil); err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to load defaults: %v", err), "config")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, NewValidationError(fmt.Sprintf("failed to load config file %s: %v", path, err), "config")
		}
	}

	if err := k.Load(envprovider.Provider(envPrefix, ".", func(s string) string {
		// Convert HTTP_CLIENT_RETRY_ATTEMPTS to retry.attempts for koanf
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to load environment variables: %v", err), "config")
	}

	return configFromKoanf(k)
}

// ParseConfig builds client configuration from raw YAML, layered over the
// defaults. Environment variables are not consulted.
func ParseConfig(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(configDefaults(), "."), nil); err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to load defaults: %v", err), "config")
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to parse config: %v", err), "config")
	}

	return configFromKoanf(k)
}

func configFromKoanf(k *koanf.Koanf) (*Config, error) {
	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to unmarshal config: %v", err), "config")
	}

	cfg := defaultConfig()
	cfg.Timeout = fc.Timeout
	cfg.MaxAttempts = fc.Retry.Attempts
	cfg.BaseBackoff = fc.Retry.Backoff
	cfg.RateLimitRPS = fc.RateLimit.RPS
	cfg.RateLimitBurst = fc.RateLimit.Burst
	cfg.LogPayloads = fc.Log.Payloads
	cfg.MaxPayloadLogBytes = fc.Log.MaxBytes
	cfg.TraceIDHeader = fc.Trace.Header
	cfg.EnableW3CTrace = fc.Trace.W3C
	for key, value := range fc.Headers {
		cfg.DefaultHeaders[key] = value
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
