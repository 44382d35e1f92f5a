package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(t *testing.T, cfg ratelimit.Config, store ratelimit.Store) (*ratelimit.Limiter, *clock) {
	t.Helper()

	l, err := ratelimit.New(cfg, store)
	require.NoError(t, err)
	c := newClock()
	l.Now = c.now
	return l, c
}

func redisStore(t *testing.T) (*ratelimit.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisStore(client, "rl:"), mr
}

func TestConfigValidate(t *testing.T) {
	_, err := ratelimit.New(ratelimit.Config{}, nil)
	require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	_, err = ratelimit.New(ratelimit.Config{MaxRequests: 5}, nil)
	require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
}

func TestBucketSemantics(t *testing.T) {
	cfg := ratelimit.Config{MaxRequests: 3, Window: time.Minute}

	stores := map[string]func(t *testing.T) ratelimit.Store{
		"memory": func(t *testing.T) ratelimit.Store { return ratelimit.NewMemoryStore() },
		"redis": func(t *testing.T) ratelimit.Store {
			s, _ := redisStore(t)
			return s
		},
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("max+1th consume fails", func(t *testing.T) {
				l, _ := newLimiter(t, cfg, mk(t))
				for i := range 3 {
					d := l.Consume(ctx, "1.2.3.4")
					require.True(t, d.Allowed, "consume %d", i+1)
					require.Equal(t, 2-i, d.Remaining)
				}
				d := l.Consume(ctx, "1.2.3.4")
				require.False(t, d.Allowed)
				require.Zero(t, d.Remaining)
				require.Equal(t, 3, d.Limit)
			})

			t.Run("refills after a full window", func(t *testing.T) {
				l, c := newLimiter(t, cfg, mk(t))
				for range 3 {
					require.True(t, l.Consume(ctx, "k").Allowed)
				}
				c.advance(59 * time.Second)
				require.False(t, l.Consume(ctx, "k").Allowed)

				c.advance(time.Second)
				for range 3 {
					require.True(t, l.Consume(ctx, "k").Allowed)
				}
				require.False(t, l.Consume(ctx, "k").Allowed)
			})

			t.Run("partial window adds nothing", func(t *testing.T) {
				l, c := newLimiter(t, cfg, mk(t))
				require.True(t, l.Consume(ctx, "k").Allowed)
				c.advance(30 * time.Second)
				require.Equal(t, 2, l.Remaining(ctx, "k"))
			})

			t.Run("refill is capped", func(t *testing.T) {
				l, c := newLimiter(t, cfg, mk(t))
				require.True(t, l.Consume(ctx, "k").Allowed)
				c.advance(10 * time.Minute)
				require.Equal(t, 3, l.Remaining(ctx, "k"))
			})

			t.Run("keys are independent", func(t *testing.T) {
				l, _ := newLimiter(t, cfg, mk(t))
				for range 3 {
					l.Consume(ctx, "a")
				}
				require.False(t, l.Consume(ctx, "a").Allowed)
				require.True(t, l.Consume(ctx, "b").Allowed)
				require.True(t, l.ConsumeAction(ctx, "a", "register").Allowed)
			})

			t.Run("reset seconds", func(t *testing.T) {
				l, c := newLimiter(t, cfg, mk(t))
				require.Equal(t, 60, l.ResetSeconds(ctx, "fresh"))

				l.Consume(ctx, "k")
				c.advance(20*time.Second + 500*time.Millisecond)
				require.Equal(t, 40, l.ResetSeconds(ctx, "k"))
			})
		})
	}
}

func TestRefusedConsumeDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	cfg := ratelimit.Config{MaxRequests: 1, Window: time.Minute}
	s, mr := redisStore(t)
	l, _ := newLimiter(t, cfg, s)

	require.True(t, l.Consume(ctx, "k").Allowed)
	before := mr.HGet("rl:k", "last")

	require.False(t, l.Consume(ctx, "k").Allowed)
	require.Equal(t, before, mr.HGet("rl:k", "last"))
	require.Equal(t, "0", mr.HGet("rl:k", "tokens"))
}

type failingStore struct{ calls int }

func (f *failingStore) Apply(context.Context, string, ratelimit.Config, time.Time, bool) (ratelimit.Result, error) {
	f.calls++
	return ratelimit.Result{}, errors.New("dial tcp: connection refused")
}

func TestFailsOpenToMemory(t *testing.T) {
	ctx := context.Background()
	broken := &failingStore{}
	l, _ := newLimiter(t, ratelimit.Config{MaxRequests: 2, Window: time.Minute}, broken)

	require.True(t, l.Consume(ctx, "k").Allowed)
	require.True(t, l.Consume(ctx, "k").Allowed)
	require.False(t, l.Consume(ctx, "k").Allowed, "fallback still enforces the bucket")
	require.Equal(t, 3, broken.calls)
}

func TestRedisOutageFailsOpen(t *testing.T) {
	ctx := context.Background()
	s, mr := redisStore(t)
	l, _ := newLimiter(t, ratelimit.Config{MaxRequests: 1, Window: time.Minute}, s)

	mr.Close()
	require.True(t, l.Consume(ctx, "k").Allowed)
}

func TestMiddleware(t *testing.T) {
	l, c := newLimiter(t, ratelimit.Config{MaxRequests: 1, Window: time.Minute}, nil)
	h := ratelimit.Middleware(l, func(r *http.Request) string { return "k" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	require.Equal(t, c.now().Add(time.Minute).Unix(), reset)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Too many requests", body["error"])
	require.Equal(t, "Please try again later", body["message"])
	require.Equal(t, c.now().Add(time.Minute).Format(time.RFC3339), body["resetTime"])
}

func TestMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	l, _ := newLimiter(t, ratelimit.Config{MaxRequests: 1, Window: time.Minute}, nil)
	h := ratelimit.Middleware(l, func(r *http.Request) string { return "" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
