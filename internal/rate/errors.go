package rate

import "errors"

var (
	// ErrRateLimited is returned by Check once a counter reaches its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
