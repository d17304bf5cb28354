package idempotency

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/panucci/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("idempotency",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
)

// NewRedisClient connects to REDIS_URL. It returns a nil client when the
// variable is unset; consumers fall back to their in-process behavior.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Info("redis disabled, REDIS_URL not set")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

// NewStore returns a Redis backed store when a client is available and a
// no-op store otherwise.
func NewStore(client *redis.Client, cfg config.Config) Store {
	if client == nil {
		return NoopStore{}
	}
	return NewRedisStore(client, cfg.IdempotencyTTL, cfg.IdempotencyPendingTTL)
}
