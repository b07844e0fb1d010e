package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const flightKeyPrefix = "readaloud:flight:"

// releaseScript deletes the marker only if this process still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// FlightMarker records which process is currently synthesizing a cache key so
// that other instances wait for its result instead of paying for it again.
type FlightMarker struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

// NewFlightMarker returns a marker whose claims expire after ttl, so a crashed
// owner never blocks a key for longer than that.
func NewFlightMarker(client *redis.Client, ttl time.Duration) *FlightMarker {
	return &FlightMarker{
		client: client,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire claims key. It returns false when another process holds the claim.
func (m *FlightMarker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := m.client.SetNX(ctx, flightKeyPrefix+key, m.owner, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire flight marker %s: %w", key, err)
	}
	return ok, nil
}

func (m *FlightMarker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, m.client, []string{flightKeyPrefix + key}, m.owner).Err(); err != nil {
		return fmt.Errorf("release flight marker %s: %w", key, err)
	}
	return nil
}
