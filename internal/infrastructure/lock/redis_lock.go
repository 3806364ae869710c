package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-instance Redis lease lock
type RedisLock struct {
	client redis.UniversalClient
	prefix string
	logger zerolog.Logger
}

// NewRedisLock creates a lock whose keys are namespaced by prefix
func NewRedisLock(client redis.UniversalClient, prefix string, logger zerolog.Logger) *RedisLock {
	return &RedisLock{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "export_lock").Logger(),
	}
}

// Acquire sets key if absent with a ttl lease. The returned release is safe to call after expiry.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", fullKey).Msg("Failed to release lock")
		}
	}
	return release, true, nil
}

// Noop grants every lock immediately. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
