package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultReportLimit, clampLimit(0))
	assert.Equal(t, DefaultReportLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxReportLimit, clampLimit(5000))
}

func TestReporting(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t,
		menuItem("burger", "50", 10),
		menuItem("coffee", "12", 3),
		menuItem("samosa", "15", 30),
	)
	orders := NewOrderService(store, fastRetry(3), nil)
	reports := NewReportingService(store)

	first, err := orders.PlaceOrder(ctx, cart("u1", line("burger", 1)))
	require.NoError(t, err)
	second, err := orders.PlaceOrder(ctx, cart("u1", line("coffee", 2)))
	require.NoError(t, err)
	_, err = orders.PlaceOrder(ctx, cart("u2", line("samosa", 1)))
	require.NoError(t, err)

	t.Run("recent sales newest first", func(t *testing.T) {
		sales, err := reports.RecentSales(ctx, 2)
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.Equal(t, second.ID, sales[1].OrderID)
	})

	t.Run("low stock ascending", func(t *testing.T) {
		items, err := reports.LowStockItems(ctx, 0)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "coffee", items[0].ID)
		assert.Equal(t, 1, items[0].StockLevel)
		assert.Equal(t, "samosa", items[2].ID)
	})

	t.Run("orders for purchaser", func(t *testing.T) {
		got, err := reports.OrdersForPurchaser(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)

		_, err = reports.OrdersForPurchaser(ctx, "", 10)
		assert.ErrorIs(t, err, domain.ErrValidationFailed)
	})

	t.Run("item lookup", func(t *testing.T) {
		item, err := reports.Item(ctx, "burger")
		require.NoError(t, err)
		assert.Equal(t, 1, item.ItemsSold)

		_, err = reports.Item(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})
}
