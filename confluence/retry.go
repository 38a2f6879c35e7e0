package confluence

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	// maxBackoff caps a single exponential backoff wait.
	maxBackoff = 60 * time.Second

	// maxJitter bounds the uniform random jitter added to each wait,
	// spreading retries so rate-limited clients don't resynchronize.
	maxJitter = 2 * time.Second
)

// backoff computes the capped exponential delay for a zero-based attempt:
// base * 2^attempt, capped at maxBackoff, plus uniform jitter in
// [0, jitterMax).
func backoff(base time.Duration, attempt int, jitterMax time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			delay = maxBackoff
			break
		}
	}
	if jitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(jitterMax)))
	}
	return delay
}

// retryAfter extracts a server-directed wait from a 429 response.
// Accepts either a number of seconds or an HTTP date. Returns 0 when the
// header is absent or unparsable, in which case the caller falls back to
// exponential backoff.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
		return time.Second
	}
	return 0
}

// sleep waits for the given duration unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
