package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect opens a client and checks it with a ping. Unlike a plain cache,
// game state cannot fall back to anything else, so a failed ping is fatal.
func Connect(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}

	logger.Info().Str("addr", addr).Int("db", db).Msg("redis connected")
	return client, nil
}

// Cache wraps redis.Client to implement the state store interfaces of the
// game services.
type Cache struct {
	client *redis.Client
	clock  quartz.Clock
}

// NewCache wraps client. clock paces lock retries.
func NewCache(client *redis.Client, clock quartz.Clock) *Cache {
	return &Cache{client: client, clock: clock}
}

// Get returns the value and whether the key exists.
func (r *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a key-value pair; ttl <= 0 means no expiry.
func (r *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, expiration(ttl)).Err()
}

func (r *Cache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// IncrBy adds delta on the server and refreshes the key's expiry in the same
// transaction.
func (r *Cache) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, delta)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ReplaceList swaps the whole list at key for values atomically.
func (r *Cache) ReplaceList(ctx context.Context, key string, values []string, ttl time.Duration) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(args) > 0 {
			pipe.RPush(ctx, key, args...)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (r *Cache) ListRange(ctx context.Context, key string) ([]string, error) {
	return r.client.LRange(ctx, key, 0, -1).Result()
}

var compareAndSetScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false then current = '' end
if current ~= ARGV[1] then return 0 end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// CompareAndSet writes value only if the key still holds expected. An empty
// expected means the key must be absent.
func (r *Cache) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	res, err := compareAndSetScript.Run(ctx, r.client, []string{key}, expected, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
