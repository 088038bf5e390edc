package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{MaxAttempts: -1, BaseBackoff: 10 * time.Millisecond, MaxBackoff: time.Millisecond}.normalized()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, p.MaxBackoff)
}

func TestRetryPolicy_Run(t *testing.T) {
	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := fastRetry(5).run(context.Background(), zap.NewNop(), "test", func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("commit: %w", port.ErrConflict)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := fastRetry(5).run(context.Background(), zap.NewNop(), "test", func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := fastRetry(4).run(context.Background(), zap.NewNop(), "test", func() error {
			calls++
			return port.ErrConflict
		})
		var contention *domain.ContentionError
		require.ErrorAs(t, err, &contention)
		assert.Equal(t, 4, contention.Attempts)
		assert.Equal(t, 4, calls)
	})

	t.Run("honours cancellation while backing off", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{MaxAttempts: 10, BaseBackoff: time.Hour, MaxBackoff: time.Hour}
		calls := 0
		err := p.run(ctx, zap.NewNop(), "test", func() error {
			calls++
			cancel()
			return port.ErrConflict
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("op", nil))

	stock := &domain.InsufficientStockError{ItemID: "a"}
	assert.Same(t, stock, classify("op", stock))

	wrapped := classify("op", errors.New("connection reset"))
	var storageErr *domain.StorageError
	require.ErrorAs(t, wrapped, &storageErr)
	assert.Equal(t, "op", storageErr.Op)
	assert.Equal(t, domain.CodeStorageFailure, domain.CodeOf(wrapped))
}
