package kv

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// Fallback serves from Primary and degrades to Secondary whenever Primary
// errors. Use it only for counters where approximate per-instance counting
// is better than refusing service; fail-closed callers use Primary
// directly.
type Fallback struct {
	Primary   Counters
	Secondary Counters

	warn rate.Sometimes
}

func NewFallback(primary, secondary Counters) *Fallback {
	return &Fallback{
		Primary:   primary,
		Secondary: secondary,
		warn:      rate.Sometimes{Interval: 30 * time.Second},
	}
}

func (f *Fallback) degrade(ctx context.Context, op string, err error) {
	f.warn.Do(func() {
		slogx.FromContext(ctx).Warn("shared store unavailable, using in-process counters",
			slog.String("op", op), slog.Any("err", err))
	})
}

func (f *Fallback) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := f.Primary.Incr(ctx, key, ttl)
	if err == nil {
		return n, nil
	}
	f.degrade(ctx, "incr", err)
	return f.Secondary.Incr(ctx, key, ttl)
}

func (f *Fallback) Get(ctx context.Context, key string) (int64, error) {
	n, err := f.Primary.Get(ctx, key)
	if err == nil {
		return n, nil
	}
	f.degrade(ctx, "get", err)
	return f.Secondary.Get(ctx, key)
}

// Delete clears both stores so a stale fallback counter cannot resurface.
func (f *Fallback) Delete(ctx context.Context, keys ...string) error {
	if err := f.Primary.Delete(ctx, keys...); err != nil {
		f.degrade(ctx, "delete", err)
	}
	return f.Secondary.Delete(ctx, keys...)
}

func (f *Fallback) AddMember(ctx context.Context, key, member string, ttl time.Duration) (int64, error) {
	n, err := f.Primary.AddMember(ctx, key, member, ttl)
	if err == nil {
		return n, nil
	}
	f.degrade(ctx, "add_member", err)
	return f.Secondary.AddMember(ctx, key, member, ttl)
}

// Ping reports Primary's health; the fallback is always available.
func (f *Fallback) Ping(ctx context.Context) error {
	return f.Primary.Ping(ctx)
}
