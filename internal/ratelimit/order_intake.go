package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/panucci/internal/config"
	"go.uber.org/zap"
)

const keyOrderIntake = "panucci:ratelimit:orders:"

// OrderIntakeLimiter throttles order submissions per client address. A nil
// or disabled limiter allows everything.
type OrderIntakeLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewOrderIntakeLimiter(client *redis.Client, cfg config.Config, log *zap.Logger) *OrderIntakeLimiter {
	limitCfg := cfg.RateLimit
	if client == nil || !limitCfg.Enabled || limitCfg.OrderRate <= 0 || limitCfg.OrderBurst <= 0 {
		return nil
	}
	return newOrderIntakeLimiter(client, limitCfg.OrderRate, limitCfg.OrderBurst, log)
}

func newOrderIntakeLimiter(client redis.UniversalClient, rate float64, burst int, log *zap.Logger) *OrderIntakeLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderIntakeLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
		log:    log.Named("ratelimit"),
	}
}

func (l *OrderIntakeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open: when Redis is unreachable the submission goes through.
func (l *OrderIntakeLimiter) Allow(ctx context.Context, clientAddr string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}

	res, err := l.bucket.Allow(ctx, keyOrderIntake+strings.TrimSpace(clientAddr), l.rate, l.burst)
	if err != nil {
		l.log.Warn("order rate limit check failed", zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}
	}
	return res
}
