package domain

import "time"

// StateWriter queues writes to the shared game state. The queued writes are
// applied together or not at all. A ttl <= 0 means no expiry.
type StateWriter interface {
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	IncrBy(key string, delta int64, ttl time.Duration)
	ReplaceList(key string, values []string, ttl time.Duration)
}
