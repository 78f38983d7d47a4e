// Package retry implements bounded exponential backoff with jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Config struct {
	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration // cap on the delay between retries
	Multiplier     float64       // backoff growth factor
	JitterFraction float64       // fraction of the delay used for jitter, 0..1
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// Do runs fn, retrying transient failures per cfg. A nil classifier retries
// everything except context cancellation. The last error is returned once
// the attempts are spent.
func Do(ctx context.Context, cfg Config, retryable Classifier, fn func(context.Context) error) error {
	if retryable == nil {
		retryable = func(err error) bool {
			return ctx.Err() == nil
		}
	}

	var lastErr error
	backoff := cfg.InitialBackoff
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		sleep := backoff + jitter(backoff, cfg.JitterFraction)
		if sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	spread := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * spread)
}
