package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces idempotency keys in Redis.
const keyPrefix = "aap:idem:"

// releaseScript deletes the key only while it still holds the expected ID.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps records in Redis using SETNX. A zero TTL keeps records
// forever.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(recipient, key string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, recipient, key)
}

func (s *RedisStore) Claim(ctx context.Context, recipient, key, messageID string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	k := redisKey(recipient, key)
	set, err := s.rdb.SetNX(ctx, k, messageID, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency SETNX: %w", err)
	}
	if set {
		return messageID, true, nil
	}

	winner, err := s.rdb.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, fmt.Errorf("idempotency record for %s expired during claim", recipient)
		}
		return "", false, fmt.Errorf("idempotency GET: %w", err)
	}
	return winner, false, nil
}

func (s *RedisStore) Lookup(ctx context.Context, recipient, key string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	id, err := s.rdb.Get(ctx, redisKey(recipient, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("idempotency GET: %w", err)
	}
	return id, true, nil
}

func (s *RedisStore) Release(ctx context.Context, recipient, key, messageID string) error {
	if err := validate(recipient, key); err != nil {
		return err
	}

	if err := releaseScript.Run(ctx, s.rdb, []string{redisKey(recipient, key)}, messageID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
