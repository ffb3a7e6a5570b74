package ratelimit

import "context"

// RateLimiter caps outbound call throughput for a named scope. All workers
// share the same limiter so the ceiling holds across the whole process.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
