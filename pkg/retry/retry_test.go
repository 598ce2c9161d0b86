package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
	)
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := fastRetrier(4).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("lock busy"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	sentinel := errors.New("already completed")
	calls := 0
	err := fastRetrier(4).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errors.New("still busy"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestLockRetrier_RetriesLockContention(t *testing.T) {
	calls := 0
	err := LockRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return Retryable(errors.New("row is locked by another writer"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryableAndPermanentWrapping(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsRetryable(Retryable(base)))
	assert.False(t, IsRetryable(Permanent(base)))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Retryable(base), base)
	assert.ErrorIs(t, Permanent(base), base)

	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}
