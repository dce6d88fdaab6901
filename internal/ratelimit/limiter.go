// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"membership-service/internal/config"
)

// Limiter counts hits per key within a fixed window.
type Limiter struct {
	rdb    goredis.Cmdable
	limit  int
	window time.Duration
}

// Connect dials Redis and pings it. It returns nil, nil when no address is
// configured so callers can run without a limiter.
func Connect(cfg config.RedisConfig, log *zap.Logger) (*Limiter, error) {
	if cfg.Addr == "" {
		log.Info("redis disabled, redemption rate limit off")
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis connected", zap.String("addr", cfg.Addr))
	return New(rdb, cfg.RedeemLimit, cfg.RedeemWindow), nil
}

// New wraps an existing client.
func New(rdb goredis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
// A nil Limiter allows everything.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	redisKey := "rate_limit:" + key
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}
