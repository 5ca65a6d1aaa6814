package ratelimit

import (
	"strconv"
	"time"
)

// Response headers attached by the HTTP wrapper.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Headers builds the rate-limit response headers for a Result.
//
// The limit header reports remaining+1 when allowed and 0 when denied; that
// approximates the configured maximum rather than reporting it exactly. The
// formula is kept as-is for compatibility with existing API clients.
func Headers(res Result) map[string]string {
	limit := "0"
	if res.Allowed {
		limit = strconv.Itoa(res.Remaining + 1)
	}

	headers := map[string]string{
		HeaderLimit:     limit,
		HeaderRemaining: strconv.Itoa(res.Remaining),
		HeaderReset:     res.ResetAt.UTC().Format(time.RFC3339),
	}
	if !res.Allowed {
		headers[HeaderRetryAfter] = strconv.Itoa(res.RetryAfter)
	}
	return headers
}
