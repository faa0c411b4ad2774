// Package httpclient provides a small, composable HTTP client that runs each
// logical request as a bounded sequence of transport attempts, with
// request/response interceptors, default headers, basic auth, trace header
// propagation and full-jitter exponential backoff between attempts.
//
// Attempts
//   - Controlled via Builder.WithRetries(maxAttempts, baseBackoff); maxAttempts
//     is the total budget including the first try.
//   - Each attempt runs under its own fresh timeout.
//   - An attempt is retried on:
//   - Transport errors (network failures)
//   - Timeouts (context deadline exceeded or net.Error timeout)
//   - Non-2xx responses the retry predicate accepts (by default 429 and
//     the transient 5xx statuses)
//   - Other 4xx responses are not retried.
//   - Caller-side context cancellation stops the call immediately.
//
// Backoff Strategy
//   - Exponential backoff based on baseBackoff: delay = baseBackoff * 2^attempt
//   - Full jitter is applied: actual sleep is random in [0, delay).
//   - Delay is capped at 30 seconds to avoid excessive waits.
//
// Notes
//   - Requests carry no body; the http.Request is rebuilt on each attempt.
//   - Response bodies are fully buffered before the retry decision runs.
//   - Interceptor errors are not retried and are surfaced immediately.
package httpclient
