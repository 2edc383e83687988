package pricing

import (
	"context"
	"time"
)

// Backoff retries a call with exponential delays. The zero value retries
// nothing; callers inject a configured policy so retry behavior is testable
// on its own.
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn until it succeeds or the attempt budget is spent. The delay
// doubles after every failed attempt.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	maxRetries := b.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := b.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
