package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// Decision describes the outcome of a consume.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
	ResetAt    time.Time
}

// ResetSeconds is ResetAfter rounded up to whole seconds.
func (d Decision) ResetSeconds() int { return ceilSeconds(d.ResetAfter) }

// Limiter applies one Config to many keys. When the primary store errors it
// fails open onto an in-process store rather than refusing requests.
type Limiter struct {
	cfg      Config
	primary  Store
	fallback *MemoryStore

	// Now is the limiter's clock. Defaults to time.Now.
	Now func() time.Time

	warn rate.Sometimes
}

// New returns a Limiter backed by primary. A nil primary keeps every bucket
// in process.
func New(cfg Config, primary Store) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fallback := NewMemoryStore()
	if primary == nil {
		primary = fallback
	}

	return &Limiter{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		Now:      time.Now,
		warn:     rate.Sometimes{Interval: 30 * time.Second},
	}, nil
}

func (l *Limiter) Config() Config { return l.cfg }

func (l *Limiter) apply(ctx context.Context, key string, consume bool) (Result, time.Time) {
	now := l.Now()

	res, err := l.primary.Apply(ctx, key, l.cfg, now, consume)
	if err == nil {
		return res, now
	}

	l.warn.Do(func() {
		slogx.FromContext(ctx).Warn("rate limit store unavailable, using in-process buckets",
			slog.String("key", key), slog.Any("err", err))
	})

	// MemoryStore never errors.
	res, _ = l.fallback.Apply(ctx, key, l.cfg, now, consume)
	return res, now
}

// Consume takes one token from key's bucket if one is available.
func (l *Limiter) Consume(ctx context.Context, key string) Decision {
	res, now := l.apply(ctx, key, true)
	after := resetAfter(res.Bucket, l.cfg, now)

	return Decision{
		Allowed:    res.Allowed,
		Limit:      l.cfg.MaxRequests,
		Remaining:  res.Bucket.Tokens,
		ResetAfter: after,
		ResetAt:    now.Add(after),
	}
}

// ConsumeAction limits one user's use of a named action independently of
// their other traffic.
func (l *Limiter) ConsumeAction(ctx context.Context, userID, action string) Decision {
	return l.Consume(ctx, ActionKey(userID, action))
}

// Remaining reports the tokens key would have after a refill at the current
// time, without consuming.
func (l *Limiter) Remaining(ctx context.Context, key string) int {
	res, _ := l.apply(ctx, key, false)
	return res.Bucket.Tokens
}

// ResetSeconds reports whole seconds until key's next window refill.
func (l *Limiter) ResetSeconds(ctx context.Context, key string) int {
	res, now := l.apply(ctx, key, false)
	return ceilSeconds(resetAfter(res.Bucket, l.cfg, now))
}

func ActionKey(userID, action string) string {
	return userID + ":" + action
}
