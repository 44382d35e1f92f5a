package ratelimit

import (
	"context"
	"time"
)

// Result is a bucket after an Apply call.
type Result struct {
	Allowed bool
	Bucket  Bucket
}

// Store holds buckets. Apply must refill, and when consume is set take one
// token, as a single atomic step per key. A refused consume leaves the
// stored bucket untouched.
type Store interface {
	Apply(ctx context.Context, key string, cfg Config, now time.Time, consume bool) (Result, error)
}
