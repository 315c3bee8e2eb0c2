package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayGuard implements ports.ReplayGuard using Redis SET NX. It is a
// fast path only: the durable replay protection lives in the database
// unique constraints.
type ReplayGuard struct {
	client *goredis.Client
	prefix string
}

// NewReplayGuard creates a new Redis-backed replay guard.
func NewReplayGuard(client *goredis.Client) *ReplayGuard {
	return &ReplayGuard{
		client: client,
		prefix: "replay:",
	}
}

// FirstSeen atomically records the token, returning true only for the
// first sighting within the TTL window.
func (g *ReplayGuard) FirstSeen(ctx context.Context, scope string, token string, ttl time.Duration) (bool, error) {
	key := g.prefix + scope + ":" + token
	result, err := g.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists: the token was seen before
			return false, nil
		}
		return false, fmt.Errorf("redis replay check: %w", err)
	}
	return result == "OK", nil
}
