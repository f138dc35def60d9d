package tracker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"veridraws/internal/logger"
)

type Func[T any] func() (T, error)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth another attempt. Retry returns the
// wrapped error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: time.Second,
		MaxDelay:     8 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = defaults.Attempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaults.InitialDelay
	}
	switch {
	case p.MaxDelay <= 0:
		p.MaxDelay = max(defaults.MaxDelay, p.InitialDelay)
	case p.MaxDelay < p.InitialDelay:
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Retry runs fn up to policy.Attempts times, doubling the wait between
// attempts up to policy.MaxDelay. The last failure is returned unchanged.
// Waiting stops early when ctx ends, and a Permanent failure ends the loop.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn Func[T]) (T, error) {
	policy = policy.withDefaults()
	delay := policy.InitialDelay

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return result, permanent.err
		}
		if attempt >= policy.Attempts {
			return result, err
		}

		logger.Debug("retry: attempt failed, waiting",
			zap.Int("attempt", attempt),
			zap.Int("attempts", policy.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, policy.MaxDelay)
	}
}
