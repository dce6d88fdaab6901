package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"membership-service/internal/apperrors"
	"membership-service/internal/config"
	"membership-service/internal/observability"
)

// RetryPolicy re-runs a transaction that failed with apperrors.ErrConflict,
// waiting a jittered exponential delay between attempts. Any other error
// stops immediately.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Log             *zap.Logger
}

// NewRetryPolicy builds a policy from the tx section of the config.
func NewRetryPolicy(cfg config.TxConfig, log *zap.Logger) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Log:             log,
	}
}

func (p RetryPolicy) run(ctx context.Context, operation string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempt := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if apperrors.Retryable(err) {
			observability.IncTxConflict(operation)
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		if p.Log != nil {
			p.Log.Debug("retrying after conflict", zap.String("operation", operation), zap.Duration("wait", wait), zap.Error(err))
		}
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx), notify)
}
