package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"time"
)

// outcomeKind tags the classified result of a single transport attempt.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeHTTPFailure
	outcomeTimeout
	outcomeNetwork
	outcomeFatal
)

// attemptResult is one attempt's outcome. resp is set for outcomeSuccess and
// outcomeHTTPFailure (body fully buffered); err is set for the other kinds.
type attemptResult struct {
	kind outcomeKind
	resp *Response
	err  error
}

// errNoOutcome guards the loop invariant that every attempt produces an
// outcome. Callers should never see it.
var errNoOutcome = errors.New("httpclient: attempt loop finished without an outcome")

// execute runs the logical request as up to MaxAttempts sequential transport
// attempts, sleeping a jittered backoff between attempts. Every terminal
// outcome returns from inside the loop.
func (c *client) execute(ctx context.Context, method string, req *Request, traceID string) (*Response, error) {
	start := time.Now()

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res := c.doAttempt(ctx, start, attempt, method, req, traceID)

		switch res.kind {
		case outcomeSuccess:
			c.logResponse(res.resp, traceID)
			return res.resp, nil

		case outcomeHTTPFailure:
			if !c.retryPredicate()(res.resp.StatusCode, res.resp.Body) {
				c.logResponse(res.resp, traceID)
				return res.resp, NewHTTPError(
					fmt.Sprintf("HTTP request failed with status %d", res.resp.StatusCode),
					res.resp.StatusCode,
					res.resp.Body,
				)
			}
			if attempt == c.config.MaxAttempts {
				c.logResponse(res.resp, traceID)
				return res.resp, NewRetryExhaustedError(
					"all retry attempts failed",
					res.resp.StatusCode,
					res.resp.Body,
					attempt,
				)
			}

		case outcomeTimeout:
			if attempt == c.config.MaxAttempts {
				return nil, newTimeoutErrorWithCause("request timeout", c.config.Timeout, res.err)
			}

		case outcomeNetwork:
			if attempt == c.config.MaxAttempts {
				return nil, NewNetworkError("request execution failed", res.err)
			}

		case outcomeFatal:
			return nil, res.err
		}

		if err := sleepContext(ctx, backoffDelay(c.config.BaseBackoff, attempt)); err != nil {
			return nil, err
		}
	}

	return nil, errNoOutcome
}

// doAttempt performs one transport attempt under a fresh per-attempt timeout
// and classifies the result. The response body is fully read before the
// attempt context is released.
func (c *client) doAttempt(parent context.Context, start time.Time, attempt int, method string, req *Request, traceID string) attemptResult {
	ctx, cancel := context.WithTimeout(parent, c.config.Timeout)
	defer cancel()

	httpReq, err := c.buildRequest(ctx, method, req, traceID)
	if err != nil {
		return attemptResult{kind: outcomeFatal, err: err}
	}

	c.logRequest(httpReq, traceID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// A caller-side cancellation or deadline ends the whole call, not
		// just this attempt.
		if parent.Err() != nil {
			return attemptResult{kind: outcomeFatal, err: parent.Err()}
		}
		if isTimeoutError(err) {
			return attemptResult{kind: outcomeTimeout, err: err}
		}
		if isNetworkError(err) {
			return attemptResult{kind: outcomeNetwork, err: err}
		}
		return attemptResult{kind: outcomeFatal, err: err}
	}

	resp, err := c.buildResponse(ctx, start, attempt, httpReq, httpResp)
	if err != nil {
		if IsErrorType(err, InterceptorError) {
			return attemptResult{kind: outcomeFatal, err: err}
		}
		if parent.Err() != nil {
			return attemptResult{kind: outcomeFatal, err: parent.Err()}
		}
		if isTimeoutError(err) {
			return attemptResult{kind: outcomeTimeout, err: err}
		}
		return attemptResult{kind: outcomeNetwork, err: err}
	}

	if IsSuccessStatus(resp.StatusCode) {
		return attemptResult{kind: outcomeSuccess, resp: resp}
	}
	return attemptResult{kind: outcomeHTTPFailure, resp: resp}
}

// buildResponse runs response interceptors, buffers the whole body and
// assembles the Response. Body read errors are returned raw so the caller can
// classify them as timeout or network failures.
func (c *client) buildResponse(ctx context.Context, start time.Time, attempt int, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer func() { _ = httpResp.Body.Close() }()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   int64(attempt),
		},
	}, nil
}

// retryPredicate returns the configured predicate or the default.
func (c *client) retryPredicate() RetryPredicate {
	if c.config.RetryPredicate != nil {
		return c.config.RetryPredicate
	}
	return DefaultRetryPredicate
}

// isTimeoutError reports whether err represents an attempt deadline hit,
// either as a context deadline or a transport-level timeout.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isNetworkError reports whether err is a transport-level failure such as a
// refused connection, DNS failure or an unexpectedly closed body. Context
// cancellation and deadline errors are excluded; they have their own
// handling.
func isNetworkError(err error) bool {
	// url.Error implements net.Error itself, so unwrap it first and let the
	// inner cause drive the classification.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
