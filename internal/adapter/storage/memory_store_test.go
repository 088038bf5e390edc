package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

func seedMemoryItem(t *testing.T, store *MemoryStore, id string, stock int) {
	t.Helper()
	require.NoError(t, store.PutItem(context.Background(), domain.Item{
		ID: id, Name: id, Price: decimal.NewFromInt(10), StockLevel: stock,
	}))
}

func TestMemoryStore_PutItemVersions(t *testing.T) {
	store := NewMemoryStore()
	seedMemoryItem(t, store, "tea", 5)
	seedMemoryItem(t, store, "tea", 6)

	item, err := store.GetItem(context.Background(), "tea")
	require.NoError(t, err)
	assert.Equal(t, 6, item.StockLevel)
	assert.Equal(t, int64(2), item.Version)
}

func TestMemoryStore_WritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedMemoryItem(t, store, "tea", 5)

	err := store.RunInTx(ctx, func(tx port.Tx) error {
		if _, err := tx.Inventory().Get(ctx, "tea"); err != nil {
			return err
		}
		require.NoError(t, tx.Inventory().ApplyDelta(ctx, "tea", domain.SaleDelta(2, decimal.NewFromInt(10))))
		require.NoError(t, tx.Orders().Append(ctx, domain.Order{ID: "o1", PurchaserID: "u1"}))

		outside, err := store.GetItem(ctx, "tea")
		require.NoError(t, err)
		assert.Equal(t, 5, outside.StockLevel)
		assert.Zero(t, store.OrderCount())
		return nil
	})
	require.NoError(t, err)

	item, err := store.GetItem(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, 3, item.StockLevel)
	assert.Equal(t, 2, item.ItemsSold)
	assert.True(t, decimal.NewFromInt(20).Equal(item.TotalRevenue))
	assert.Equal(t, 1, store.OrderCount())
}

func TestMemoryStore_StaleReadConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedMemoryItem(t, store, "tea", 5)

	err := store.RunInTx(ctx, func(tx port.Tx) error {
		if _, err := tx.Inventory().Get(ctx, "tea"); err != nil {
			return err
		}
		seedMemoryItem(t, store, "tea", 1)
		return tx.Inventory().ApplyDelta(ctx, "tea", domain.ItemDelta{Stock: -1, Sold: 1})
	})
	assert.ErrorIs(t, err, port.ErrConflict)

	item, err := store.GetItem(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, 1, item.StockLevel)
}

func TestMemoryStore_ReadOnlyTxStillValidated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedMemoryItem(t, store, "tea", 5)

	store.SetBeforeCommit(func() { seedMemoryItem(t, store, "tea", 4) })
	defer store.SetBeforeCommit(nil)

	err := store.RunInTx(ctx, func(tx port.Tx) error {
		_, err := tx.Inventory().Get(ctx, "tea")
		return err
	})
	assert.ErrorIs(t, err, port.ErrConflict)
}

func TestMemoryStore_AccessorErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var leaked port.Tx
	err := store.RunInTx(ctx, func(tx port.Tx) error {
		leaked = tx
		_, err := tx.Inventory().Get(ctx, "ghost")
		assert.ErrorIs(t, err, port.ErrNotFound)
		assert.ErrorIs(t, tx.Inventory().ApplyDelta(ctx, "ghost", domain.ItemDelta{}), port.ErrUnread)
		assert.ErrorIs(t, tx.Forum().ApplyPostDelta(ctx, "ghost", domain.PostDelta{}), port.ErrUnread)
		return nil
	})
	require.NoError(t, err)

	_, err = leaked.Inventory().Get(ctx, "ghost")
	assert.ErrorIs(t, err, port.ErrTxClosed)
	assert.ErrorIs(t, leaked.Orders().Append(ctx, domain.Order{}), port.ErrTxClosed)
}

func TestMemoryStore_InjectConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.InjectConflicts(1)

	noop := func(tx port.Tx) error { return nil }
	assert.ErrorIs(t, store.RunInTx(ctx, noop), port.ErrConflict)
	assert.NoError(t, store.RunInTx(ctx, noop))
}

func TestMemoryStore_SlotRace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	booking := domain.Booking{ID: "b1", ResourceID: "lab", TimeSlot: "10:00"}

	err := store.RunInTx(ctx, func(tx port.Tx) error {
		_, err := tx.Bookings().FindBySlot(ctx, "lab", "10:00")
		require.ErrorIs(t, err, port.ErrNotFound)

		// A competing booking lands first.
		require.NoError(t, store.RunInTx(ctx, func(other port.Tx) error {
			return other.Bookings().Create(ctx, domain.Booking{ID: "b2", ResourceID: "lab", TimeSlot: "10:00"})
		}))
		return tx.Bookings().Create(ctx, booking)
	})
	assert.ErrorIs(t, err, port.ErrConflict)
}
