// Package kv is the shared counter store used for cross-instance state that
// must expire on its own: failed-login counters, per-IP user sets and the
// like. Redis backs it in production; Memory serves single-instance
// deployments, tests and the degraded path.
package kv

import (
	"context"
	"time"
)

// Counters is the narrow view of the shared store that services depend on.
type Counters interface {
	// Incr atomically increments key and returns the new value. ttl is
	// applied when the key is created and is not extended by later
	// increments, so a burst of failures expires as a unit.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current value of key, or 0 when it does not exist.
	Get(ctx context.Context, key string) (int64, error)

	Delete(ctx context.Context, keys ...string) error

	// AddMember adds member to the set at key, refreshes the set's ttl and
	// returns its cardinality.
	AddMember(ctx context.Context, key, member string, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
