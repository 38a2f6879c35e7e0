package confluence

import "errors"

var (
	// ErrBaseURLRequired is returned when no API base URL is configured.
	ErrBaseURLRequired = errors.New("confluence base URL required")

	// ErrRetriesExhausted is returned when a request kept being rate
	// limited or failing at the network level past the attempt budget.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRequestFailed is returned for non-retryable HTTP error statuses.
	ErrRequestFailed = errors.New("request failed")
)
