package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = config.RetryConfig{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2,
}

func TestRetryWithResultEventuallySucceeds(t *testing.T) {
	calls := 0
	res, err := RetryWithResult(context.Background(), fastRetry, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return 42, nil
	}, "flaky call")

	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return boom
	}, "always failing")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	notFound := errors.New("not found")
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return Permanent(notFound)
	}, "lookup")

	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsPermanent(err))
	assert.True(t, IsPermanent(Permanent(notFound)))
	assert.Nil(t, Permanent(nil))
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry, func() error { return nil }, "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
}
