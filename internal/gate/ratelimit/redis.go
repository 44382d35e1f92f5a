package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript performs refill and consume in one round trip so concurrent
// requests on the same key cannot interleave between read and write.
//
// KEYS[1] bucket hash
// ARGV    max, window ms, now ms, consume (1/0)
// returns {allowed, tokens, last refill ms}
var bucketScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local consume = ARGV[4] == "1"

local data = redis.call("HMGET", KEYS[1], "tokens", "last")
local tokens = tonumber(data[1])
local last = tonumber(data[2])

if tokens == nil or last == nil then
	tokens = max
	last = now
else
	local elapsed = now - last
	if elapsed < 0 then
		elapsed = 0
	end
	local windows = math.floor(elapsed / window)
	if windows > 0 then
		tokens = math.min(max, tokens + windows * max)
		last = now
	end
end

local allowed = 0
if consume and tokens > 0 then
	tokens = tokens - 1
	allowed = 1
	redis.call("HMSET", KEYS[1], "tokens", tokens, "last", last)
	redis.call("PEXPIRE", KEYS[1], window)
end

return {allowed, tokens, last}
`)

// RedisStore keeps buckets in Redis hashes under Prefix. A bucket expires
// one window after its last consume, at which point it would have refilled
// to full anyway.
type RedisStore struct {
	Client redis.UniversalClient
	Prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{Client: client, Prefix: prefix}
}

func (s *RedisStore) Apply(ctx context.Context, key string, cfg Config, now time.Time, consume bool) (Result, error) {
	flag := "0"
	if consume {
		flag = "1"
	}

	vals, err := bucketScript.Run(ctx, s.Client, []string{s.Prefix + key},
		cfg.MaxRequests, cfg.Window.Milliseconds(), now.UnixMilli(), flag,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis apply %s: %w", key, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("ratelimit: redis apply %s: unexpected reply length %d", key, len(vals))
	}

	return Result{
		Allowed: vals[0] == 1,
		Bucket: Bucket{
			Tokens:     int(vals[1]),
			LastRefill: time.UnixMilli(vals[2]).UTC(),
		},
	}, nil
}
