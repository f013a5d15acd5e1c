// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Permanent marks err so that Do stops retrying and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, the context ends
// or MaxAttempts is reached. isPermanent may be nil.
func Do(ctx context.Context, cfg Config, isPermanent func(error) bool, op func() error) error {
	if cfg.MaxAttempts <= 1 {
		return op()
	}

	eb := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		eb.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		eb.MaxInterval = cfg.MaxInterval
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		if isPermanent != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
