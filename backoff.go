package httpclient

import (
	"context"
	crand "crypto/rand"
	"math/big"
	"time"
)

const (
	// maxBackoff caps the pre-jitter delay to avoid excessive sleeps.
	maxBackoff = 30 * time.Second
	// maxBackoffShift caps the exponent to avoid overflow (2^20 = 1,048,576).
	maxBackoffShift = 20
)

// backoffDelay returns the randomized delay to wait after the given attempt,
// using base as the unit and full jitter: a uniform duration in
// [0, base*2^attempt), with the pre-jitter delay capped at maxBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	// Exponential backoff: base * 2^attempt
	mult := 1 << attempt
	d := base * time.Duration(mult)
	if d > maxBackoff || d <= 0 { // d <= 0 means the multiply overflowed
		d = maxBackoff
	}
	// Full jitter: random duration in [0, d)
	maxN := big.NewInt(int64(d))
	n, err := crand.Int(crand.Reader, maxN)
	if err != nil {
		// On RNG failure, fall back to the full delay
		return d
	}
	return time.Duration(n.Int64())
}

// sleepContext waits for d or until the context is done, whichever comes
// first. A zero d still parks on the timer so the scheduler gets a chance to
// run other goroutines. Returns the context error when the wait was aborted.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
