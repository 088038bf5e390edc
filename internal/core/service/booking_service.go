package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

type BookingService struct {
	store  port.TxStore
	retry  RetryPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewBookingService(store port.TxStore, retry RetryPolicy, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:  store,
		retry:  retry.normalized(),
		logger: nopIfNil(logger).Named("bookings"),
		now:    time.Now,
	}
}

// Book reserves (resource, time slot) for the user. The occupancy check and
// the insert run in one transaction, so two requests for the same slot can
// never both succeed.
func (s *BookingService) Book(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	req.ResourceName = strings.TrimSpace(req.ResourceName)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validateStruct(req).OrNil(); err != nil {
		return nil, err
	}

	var booked *domain.Booking
	err := s.retry.run(ctx, s.logger, "book resource", func() error {
		return s.store.RunInTx(ctx, func(tx port.Tx) error {
			_, err := tx.Bookings().FindBySlot(ctx, req.ResourceID, req.TimeSlot)
			if err == nil {
				return &domain.SlotTakenError{ResourceID: req.ResourceID, TimeSlot: req.TimeSlot}
			}
			if !errors.Is(err, port.ErrNotFound) {
				return fmt.Errorf("read slot: %w", err)
			}

			b := domain.Booking{
				ID:           uuid.NewString(),
				ResourceID:   req.ResourceID,
				ResourceName: req.ResourceName,
				TimeSlot:     req.TimeSlot,
				UserID:       req.UserID,
				UserName:     req.UserName,
				Status:       domain.BookingStatusConfirmed,
				BookedAt:     s.now().UTC(),
			}
			if err := tx.Bookings().Create(ctx, b); err != nil {
				return fmt.Errorf("create booking: %w", err)
			}
			booked = &b
			return nil
		})
	})
	if err != nil {
		err = classify("book resource", err)
		s.logger.Info("booking rejected",
			zap.String("resource_id", req.ResourceID),
			zap.String("time_slot", req.TimeSlot),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("resource booked",
		zap.String("booking_id", booked.ID),
		zap.String("resource_id", booked.ResourceID),
		zap.String("time_slot", booked.TimeSlot),
	)
	return booked, nil
}
