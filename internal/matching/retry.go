package matching

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
)

// RetryConfig bounds the exponential backoff applied to transient store errors.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  5 * time.Second,
	}
}

// withRetry re-runs op while it fails with ErrTransientStore. Any other error
// is returned immediately and unchanged.
func withRetry(ctx context.Context, cfg RetryConfig, operation string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime

	attempt := func() error {
		err := op()
		if err == nil || errors.Is(err, ErrTransientStore) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		recordStoreRetry(operation)
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("operation", operation).
			Dur("retry_in", wait).
			Msg("transient store failure, retrying")
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), notify)
}
