package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelays(t *testing.T) {
	constant := ConstantBackoff(50*time.Millisecond, 3)
	assert.Equal(t, []time.Duration{
		50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond,
	}, constant.Delays())

	exponential := ExponentialBackoff(10*time.Millisecond, 3)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond,
	}, exponential.Delays())
}

func TestRetryAttemptCount(t *testing.T) {
	policy := ConstantBackoff(time.Millisecond, 2)
	attempts := 0
	err := policy.Retry(context.Background(), func(error) bool { return true }, func() error {
		attempts++
		return errors.New("still failing")
	})
	assert.Error(t, err)
	// One initial try plus one retry per delay.
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := ConstantBackoff(time.Millisecond, 5)
	attempts := 0
	err := policy.Retry(context.Background(), func(error) bool { return true }, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryAbortsOnNonRetryable(t *testing.T) {
	policy := ConstantBackoff(time.Millisecond, 5)
	fatal := errors.New("fatal")
	attempts := 0
	err := policy.Retry(context.Background(), func(err error) bool { return !errors.Is(err, fatal) }, func() error {
		attempts++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestRetryHonorsContext(t *testing.T) {
	policy := ConstantBackoff(time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := policy.Retry(ctx, func(error) bool { return true }, func() error {
		return errors.New("failing")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
