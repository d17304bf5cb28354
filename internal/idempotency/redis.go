package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "panucci:idem:"
	pendingPrefix = "pending:"
	donePrefix    = "done:"
)

const completeScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
end
return 0
`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	defaultTTL        = 24 * time.Hour
	defaultPendingTTL = 30 * time.Second
)

// RedisStore keeps a pending lease for pendingTTL and a completed result for ttl.
type RedisStore struct {
	client     redis.UniversalClient
	ttl        time.Duration
	pendingTTL time.Duration
	complete   *redis.Script
	release    *redis.Script
}

func NewRedisStore(client redis.UniversalClient, ttl, pendingTTL time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	if pendingTTL > ttl {
		pendingTTL = ttl
	}
	return &RedisStore{
		client:     client,
		ttl:        ttl,
		pendingTTL: pendingTTL,
		complete:   redis.NewScript(completeScript),
		release:    redis.NewScript(releaseScript),
	}
}

func redisKey(scope, key string) string {
	return keyPrefix + scope + ":" + key
}

func (s *RedisStore) Begin(ctx context.Context, scope, key string) (Lease, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return Lease{}, err
	}
	rkey := redisKey(scope, key)
	token := ulid.Make().String()

	// The key may expire between SETNX and GET; one retry covers that window.
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, rkey, pendingPrefix+token, s.pendingTTL).Result()
		if err != nil {
			return Lease{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return Lease{Key: rkey, Token: token}, nil
		}

		value, err := s.client.Get(ctx, rkey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Lease{}, fmt.Errorf("read idempotency key: %w", err)
		}
		if result, ok := strings.CutPrefix(value, donePrefix); ok {
			return Lease{Key: rkey, Result: result}, nil
		}
		return Lease{}, ErrInFlight
	}
	return Lease{}, ErrInFlight
}

func (s *RedisStore) Complete(ctx context.Context, lease Lease, result string) error {
	if lease.Key == "" || lease.Token == "" {
		return nil
	}
	return s.complete.Run(ctx, s.client,
		[]string{lease.Key},
		pendingPrefix+lease.Token,
		donePrefix+result,
		s.ttl.Milliseconds(),
	).Err()
}

func (s *RedisStore) Release(ctx context.Context, lease Lease) error {
	if lease.Key == "" || lease.Token == "" {
		return nil
	}
	return s.release.Run(ctx, s.client, []string{lease.Key}, pendingPrefix+lease.Token).Err()
}
