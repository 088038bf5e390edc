package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/adapter/storage"
	"github.com/rl1809/canteen-engine/internal/core/domain"
)

func bookingReq(user string) domain.BookingRequest {
	return domain.BookingRequest{
		ResourceID:   "lab-3",
		ResourceName: "Chemistry Lab 3",
		TimeSlot:     "2024-05-01T10:00",
		UserID:       user,
		UserName:     user,
	}
}

func TestBook_Success(t *testing.T) {
	svc := NewBookingService(storage.NewMemoryStore(), fastRetry(3), nil)

	b, err := svc.Book(context.Background(), bookingReq("alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Equal(t, "lab-3", b.ResourceID)
	assert.False(t, b.BookedAt.IsZero())
}

func TestBook_SlotTaken(t *testing.T) {
	svc := NewBookingService(storage.NewMemoryStore(), fastRetry(3), nil)

	_, err := svc.Book(context.Background(), bookingReq("alice"))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), bookingReq("bob"))
	require.ErrorIs(t, err, domain.ErrSlotTaken)
	assert.Equal(t, domain.CodeSlotTaken, domain.CodeOf(err))

	other := bookingReq("bob")
	other.TimeSlot = "2024-05-01T11:00"
	_, err = svc.Book(context.Background(), other)
	assert.NoError(t, err)
}

func TestBook_Validation(t *testing.T) {
	svc := NewBookingService(storage.NewMemoryStore(), fastRetry(3), nil)

	_, err := svc.Book(context.Background(), domain.BookingRequest{ResourceID: "  ", UserID: "u1"})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.ElementsMatch(t, []string{"resource_id", "resource_name", "time_slot"}, fieldNames(t, err))
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	svc := NewBookingService(storage.NewMemoryStore(), fastRetry(10), nil)

	const contenders = 8
	var (
		wg    sync.WaitGroup
		won   atomic.Int32
		start = make(chan struct{})
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Book(context.Background(), bookingReq("student"))
			if err == nil {
				won.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrSlotTaken)
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, won.Load())
}
