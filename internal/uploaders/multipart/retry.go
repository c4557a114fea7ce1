package multipart

import (
	"context"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
)

// Clock is the time source for backoff waits and progress throttling
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

var SystemClock Clock = systemClock{}

// RetryPolicy retries a part up to MaxRetries times after the first attempt,
// waiting BaseDelay doubled per retry (1s, 2s, 4s with the defaults).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Clock      Clock
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: utils.DefaultMaxRetries,
		BaseDelay:  utils.DefaultRetryBaseDelay,
		Clock:      SystemClock,
	}
}

func NewRetryPolicy(cfg utils.RetryConfig, clock Clock) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if clock != nil {
		policy.Clock = clock
	}
	return policy
}

// Attempts is the total number of tries including the first one
func (p RetryPolicy) Attempts() int {
	return p.MaxRetries + 1
}

// Backoff returns the wait before the given retry, counted from 1
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return p.BaseDelay << (retry - 1)
}

func (p RetryPolicy) Wait(ctx context.Context, retry int) error {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(p.Backoff(retry)):
		return nil
	}
}
