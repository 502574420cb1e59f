package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window is the key's TTL: the first INCR sets it, later ones leave it alone.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

var decrementScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]))
if n and n > 0 then
  return redis.call('DECR', KEYS[1])
end
return 0
`)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	pipe := s.client.Pipeline()
	countCmd := pipe.Get(ctx, s.prefix+key)
	ttlCmd := pipe.PTTL(ctx, s.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, err
	}

	count, err := countCmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, nil
	}
	return count, s.now().Add(ttl), nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, period time.Duration) (int, time.Time, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, period.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(res) != 2 {
		return 0, time.Time{}, errors.New("unexpected rate limit script reply")
	}
	return int(res[0]), s.now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

func (s *RedisStore) Decrement(ctx context.Context, key string) error {
	return decrementScript.Run(ctx, s.client, []string{s.prefix + key}).Err()
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
