package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAdapter(db), mock
}

var itemRowColumns = []string{"item_id", "name", "category", "price", "stock", "items_sold", "total_revenue", "version", "updated_at"}

func burgerRow(stock int, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(itemRowColumns).
		AddRow("burger", "Burger", "Meals", "50.00", stock, 0, "0.00", version, time.Now())
}

func TestMySQLRunInTx_AppliesDeltaConditionally(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items WHERE item_id = \?`).
		WithArgs("burger").
		WillReturnRows(burgerRow(5, 7))
	mock.ExpectExec(`UPDATE items`).
		WithArgs(-3, 3, sqlmock.AnyArg(), "burger", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		item, err := tx.Inventory().Get(context.Background(), "burger")
		if err != nil {
			return err
		}
		assert.Equal(t, 5, item.StockLevel)
		assert.True(t, decimal.NewFromInt(50).Equal(item.Price))
		return tx.Inventory().ApplyDelta(context.Background(), "burger", domain.SaleDelta(3, item.Price))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunInTx_StaleVersionIsConflict(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items`).WithArgs("burger").WillReturnRows(burgerRow(5, 7))
	mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		if _, err := tx.Inventory().Get(context.Background(), "burger"); err != nil {
			return err
		}
		return tx.Inventory().ApplyDelta(context.Background(), "burger", domain.SaleDelta(1, decimal.NewFromInt(50)))
	})
	assert.ErrorIs(t, err, port.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunInTx_DeadlockIsConflict(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items`).WithArgs("burger").WillReturnRows(burgerRow(5, 1))
	mock.ExpectExec(`UPDATE items`).
		WillReturnError(&mysql.MySQLError{Number: mysqlErrDeadlock, Message: "Deadlock found"})
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		if _, err := tx.Inventory().Get(context.Background(), "burger"); err != nil {
			return err
		}
		return tx.Inventory().ApplyDelta(context.Background(), "burger", domain.SaleDelta(1, decimal.NewFromInt(50)))
	})
	assert.ErrorIs(t, err, port.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunInTx_CallbackErrorRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(itemRowColumns))
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		_, err := tx.Inventory().Get(context.Background(), "ghost")
		return err
	})
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRunInTx_DeltaWithoutReadIsRejected(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		return tx.Inventory().ApplyDelta(context.Background(), "burger", domain.ItemDelta{Stock: -1})
	})
	assert.ErrorIs(t, err, port.ErrUnread)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLBookings_DuplicateSlotIsConflict(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE resource_id = \? AND time_slot = \?`).
		WithArgs("lab-3", "10:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnError(&mysql.MySQLError{Number: mysqlErrDuplicateEntry, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := adapter.RunInTx(context.Background(), func(tx port.Tx) error {
		_, err := tx.Bookings().FindBySlot(context.Background(), "lab-3", "10:00")
		if !errors.Is(err, port.ErrNotFound) {
			return err
		}
		return tx.Bookings().Create(context.Background(), domain.Booking{
			ID: uuid.NewString(), ResourceID: "lab-3", TimeSlot: "10:00", Status: domain.BookingStatusConfirmed,
		})
	})
	assert.ErrorIs(t, err, port.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOrdersByPurchaser_DecodesLines(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM orders WHERE purchaser_id = \?`).
		WithArgs("u1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "purchaser_id", "line_items", "total_price", "created_at"}).
			AddRow("o1", "u1", []byte(`[{"item_id":"burger","name":"Burger","unit_price":"50","quantity":2,"line_total":"100"}]`), "100.00", created))

	orders, err := adapter.OrdersByPurchaser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Lines, 1)
	assert.Equal(t, "burger", orders[0].Lines[0].ItemID)
	assert.Equal(t, 2, orders[0].ItemCount())
	assert.True(t, decimal.NewFromInt(100).Equal(orders[0].TotalPrice))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetItem_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT .+ FROM items WHERE item_id = \?`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(itemRowColumns))

	_, err := adapter.GetItem(context.Background(), "ghost")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestTranslateMySQLError(t *testing.T) {
	assert.ErrorIs(t, translateMySQLError(&mysql.MySQLError{Number: mysqlErrLockWaitTimeout}), port.ErrConflict)

	other := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}
	assert.Same(t, other, translateMySQLError(other))
}

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/canteen?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func TestMySQLLive_ConcurrentDeltasNeverOversell(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.EnsureSchema(ctx))

	itemID := "live-" + uuid.NewString()[:8]
	require.NoError(t, adapter.PutItem(ctx, domain.Item{
		ID: itemID, Name: "Burger", Price: decimal.NewFromInt(50), StockLevel: 5,
	}))
	defer db.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, itemID)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = adapter.RunInTx(ctx, func(tx port.Tx) error {
				item, err := tx.Inventory().Get(ctx, itemID)
				if err != nil {
					return err
				}
				if !item.CanFulfil(3) {
					return &domain.InsufficientStockError{ItemID: itemID, Available: item.StockLevel, Requested: 3}
				}
				return tx.Inventory().ApplyDelta(ctx, itemID, domain.SaleDelta(3, item.Price))
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	item, err := adapter.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.StockLevel)
	assert.Equal(t, 3, item.ItemsSold)
}
