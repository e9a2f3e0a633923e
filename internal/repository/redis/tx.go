package redis

import (
	"context"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// txWriter queues commands on a MULTI/EXEC pipeline.
type txWriter struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (w *txWriter) Set(key, value string, ttl time.Duration) {
	w.pipe.Set(w.ctx, key, value, expiration(ttl))
}

func (w *txWriter) Del(keys ...string) {
	if len(keys) > 0 {
		w.pipe.Del(w.ctx, keys...)
	}
}

func (w *txWriter) IncrBy(key string, delta int64, ttl time.Duration) {
	w.pipe.IncrBy(w.ctx, key, delta)
	if ttl > 0 {
		w.pipe.Expire(w.ctx, key, ttl)
	}
}

func (w *txWriter) ReplaceList(key string, values []string, ttl time.Duration) {
	w.pipe.Del(w.ctx, key)
	if len(values) == 0 {
		return
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.pipe.RPush(w.ctx, key, args...)
	if ttl > 0 {
		w.pipe.Expire(w.ctx, key, ttl)
	}
}

// Atomic lets fn queue writes and applies them in a single MULTI/EXEC. If fn
// returns an error nothing is sent. Reads made inside fn see the state before
// any of the queued writes.
func (r *Cache) Atomic(ctx context.Context, fn func(w domain.StateWriter) error) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&txWriter{ctx: ctx, pipe: pipe})
	})
	return err
}
