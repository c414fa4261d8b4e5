// Package retry provides a bounded retry helper with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the wait before the second attempt; each subsequent wait doubles.
	Delay time.Duration
	// MaxDelay caps the growing delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultConfig matches the backend sync policy: a few attempts, then give up
// and keep operating on local state.
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 10 * time.Second,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context is
// cancelled. The last error is returned on exhaustion.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var err error
	delay := cfg.Delay
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
