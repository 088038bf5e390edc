package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 5 * time.Millisecond
	DefaultMaxBackoff  = 100 * time.Millisecond
)

// RetryPolicy bounds the optimistic-concurrency loop shared by every write path.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff < 0 {
		p.BaseBackoff = 0
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// run calls fn until it returns something other than port.ErrConflict. Each
// call must start a fresh transaction so no stale read survives a retry.
func (p RetryPolicy) run(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, port.ErrConflict) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return &domain.ContentionError{Attempts: attempt}
		}

		logger.Debug("write conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
		)
		if err := p.wait(ctx, attempt); err != nil {
			return err
		}
	}
}

// wait sleeps base*2^(attempt-1) capped at MaxBackoff, plus up to 50% jitter.
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	if p.BaseBackoff == 0 {
		return ctx.Err()
	}

	d := p.BaseBackoff << (attempt - 1)
	if d > p.MaxBackoff || d <= 0 {
		d = p.MaxBackoff
	}
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify passes domain failures through and wraps anything else as a
// storage failure.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrContention),
		errors.Is(err, domain.ErrSlotTaken),
		errors.Is(err, domain.ErrPostNotFound):
		return err
	default:
		return &domain.StorageError{Op: op, Err: err}
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
