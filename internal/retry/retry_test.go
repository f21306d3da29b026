package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayForExponentialBackoff(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, cfg.DelayFor(1))
	assert.Equal(t, 2*time.Second, cfg.DelayFor(2))
	assert.Equal(t, 4*time.Second, cfg.DelayFor(3))
	assert.Equal(t, 8*time.Second, cfg.DelayFor(4))
	assert.Equal(t, 10*time.Second, cfg.DelayFor(5), "backoff caps at MaxDelay")
	assert.Equal(t, 10*time.Second, cfg.DelayFor(50), "large attempts never overflow past the cap")
}

func TestDelayForDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 100*time.Millisecond, cfg.DelayFor(1))
	assert.Equal(t, 100*time.Millisecond, cfg.DelayFor(0), "attempts below one clamp to the first delay")
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("validation failed")
	calls := 0
	err := Retry(context.Background(), Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "non-retryable errors fail fast")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	err := Retry(context.Background(), Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, func() error {
		return errors.New("i/o timeout")
	})
	require.ErrorIs(t, err, ErrMaxAttemptsExceeded)
}

func TestDefaultIsRetryable(t *testing.T) {
	assert.True(t, DefaultIsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, DefaultIsRetryable(errors.New("context deadline exceeded")))
	assert.True(t, DefaultIsRetryable(errors.New("unexpected EOF")))
	assert.False(t, DefaultIsRetryable(errors.New("record not found")))
	assert.False(t, DefaultIsRetryable(nil))
}
