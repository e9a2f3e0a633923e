package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/iamasit07/colorguess/backend/pkg/uid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 20 * time.Millisecond

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lock takes an exclusive lease on key, retrying until wait elapses. The
// lease expires after ttl so a crashed holder cannot wedge a game. The
// returned release only deletes the key while it still carries our token.
func (r *Cache) Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	token := uid.NewLockToken()
	deadline := r.clock.Now().Add(wait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if !r.clock.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: lock %s held", domain.ErrGameBusy, key)
		}

		timer := r.clock.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	release := func(ctx context.Context) error {
		if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}
