package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments and sets the expiry in one step so a counter can
// never be left without a TTL.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis implements Counters on a go-redis client. All keys are namespaced
// with Prefix.
type Redis struct {
	Client redis.UniversalClient
	Prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{Client: client, Prefix: prefix}
}

func (r *Redis) key(k string) string { return r.Prefix + k }

func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, r.Client, []string{r.key(key)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("kv: incr %s: %w", key, err)
	}
	return n, nil
}

func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.Client.Get(ctx, r.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return n, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.Client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

func (r *Redis) AddMember(ctx context.Context, key, member string, ttl time.Duration) (int64, error) {
	k := r.key(key)

	var card *redis.IntCmd
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, k, member)
		p.PExpire(ctx, k, ttl)
		card = p.SCard(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("kv: add member %s: %w", key, err)
	}
	return card.Val(), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
