// Package ratelimit implements a token bucket limiter whose buckets refill in
// whole windows. Bucket state lives in a shared Store when one is configured
// and in process memory otherwise.
package ratelimit

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("ratelimit: invalid config")

// Config is the shape of every bucket a Limiter manages.
type Config struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

func (c Config) Validate() error {
	if c.MaxRequests <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Bucket is the persisted state for one key. 0 <= Tokens <= MaxRequests.
type Bucket struct {
	Tokens     int
	LastRefill time.Time
}

// refill returns b advanced to now. A missing bucket starts full. Tokens are
// only added in whole windows, and LastRefill moves to now whenever tokens
// are added.
func refill(b Bucket, exists bool, cfg Config, now time.Time) Bucket {
	if !exists {
		return Bucket{Tokens: cfg.MaxRequests, LastRefill: now}
	}

	elapsed := max(now.Sub(b.LastRefill), 0)
	windows := int64(elapsed / cfg.Window)
	if windows > 0 {
		add := windows * int64(cfg.MaxRequests)
		b.Tokens = int(min(int64(b.Tokens)+add, int64(cfg.MaxRequests)))
		b.LastRefill = now
	}
	return b
}

// resetAfter is the time until the bucket's next whole-window refill.
func resetAfter(b Bucket, cfg Config, now time.Time) time.Duration {
	elapsed := max(now.Sub(b.LastRefill), 0)
	return cfg.Window - elapsed%cfg.Window
}

// ceilSeconds rounds d up to whole seconds.
func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
