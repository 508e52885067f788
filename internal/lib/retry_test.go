package lib_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/lib"
)

func fastBackoff() *lib.BackoffManager {
	return lib.NewBackoffManager(lib.BackoffConfig{
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
		ResetAfter:        time.Minute,
	})
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := lib.Retry(context.Background(), 3, time.Second, fastBackoff(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := lib.Retry(context.Background(), 3, time.Second, fastBackoff(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return internalerrors.NewTransientError("etcd put", errors.New("unavailable"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad content")
	calls := 0
	err := lib.Retry(context.Background(), 3, time.Second, fastBackoff(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := lib.Retry(context.Background(), 2, time.Second, fastBackoff(), func(ctx context.Context) error {
		calls++
		return internalerrors.NewTransientError("etcd put", errors.New("unavailable"))
	})
	require.Error(t, err)
	assert.True(t, internalerrors.IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := lib.Retry(ctx, 10, time.Second, fastBackoff(), func(ctx context.Context) error {
		calls++
		cancel()
		return internalerrors.NewTransientError("etcd put", errors.New("unavailable"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
