// Package retry provides bounded backoff policies for classified-retryable
// failures. A constant policy drives alert persistence; an exponential
// policy drives moving alerts on monitor delete/update.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// BackoffPolicy yields a bounded, ordered sequence of delays.
type BackoffPolicy struct {
	delays []time.Duration
}

// ConstantBackoff waits the same delay between each of maxRetries attempts.
func ConstantBackoff(delay time.Duration, maxRetries int) BackoffPolicy {
	delays := make([]time.Duration, 0, maxRetries)
	for i := 0; i < maxRetries; i++ {
		delays = append(delays, delay)
	}
	return BackoffPolicy{delays: delays}
}

// ExponentialBackoff doubles the delay after each attempt, starting at base.
func ExponentialBackoff(base time.Duration, maxRetries int) BackoffPolicy {
	delays := make([]time.Duration, 0, maxRetries)
	d := base
	for i := 0; i < maxRetries; i++ {
		delays = append(delays, d)
		d *= 2
	}
	return BackoffPolicy{delays: delays}
}

// Delays returns the backoff sequence. The total attempt count is
// len(Delays())+1: one initial try plus one retry per delay.
func (p BackoffPolicy) Delays() []time.Duration {
	return p.delays
}

// Retry runs fn once and then up to len(delays) more times, sleeping the
// policy delay before each retry. Only errors classified retryable by
// isRetryable are retried; any other error aborts immediately. The last
// error is returned when attempts are exhausted.
func (p BackoffPolicy) Retry(ctx context.Context, isRetryable func(error) bool, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	for _, delay := range p.delays {
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		logrus.Warnf("Retrying in %v after error: %v", delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
