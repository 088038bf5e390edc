package port

import (
	"context"
	"errors"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

var (
	// ErrNotFound is returned by accessors when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by RunInTx when a record read by the transaction
	// was modified before commit. The whole unit of work must be retried.
	ErrConflict = errors.New("write conflict")

	// ErrUnread is returned when a conditional write targets a record the
	// transaction never read.
	ErrUnread = errors.New("record not read in this transaction")

	// ErrTxClosed is returned when an accessor is used after RunInTx returned.
	ErrTxClosed = errors.New("transaction already closed")
)

// TxStore runs a unit of work against the backing store with snapshot reads
// and all-or-nothing writes.
type TxStore interface {
	// RunInTx executes fn inside one isolated transaction. If fn returns an
	// error nothing is written. If another writer touched a record read by fn,
	// RunInTx returns ErrConflict and nothing is written.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the accessors bound to a single transaction. None of them may be
// used after fn returns.
type Tx interface {
	Inventory() InventoryAccessor
	Orders() OrderLedger
	Sales() SalesLedger
	Bookings() BookingLedger
	Forum() ForumAccessor
}

type InventoryAccessor interface {
	// Get returns the item or ErrNotFound.
	Get(ctx context.Context, itemID string) (*domain.Item, error)

	// ApplyDelta updates the item conditionally on the version read by Get in
	// the same transaction.
	ApplyDelta(ctx context.Context, itemID string, delta domain.ItemDelta) error
}

type OrderLedger interface {
	Append(ctx context.Context, order domain.Order) error
}

type SalesLedger interface {
	Append(ctx context.Context, sale domain.SaleEvent) error
}

type BookingLedger interface {
	// FindBySlot returns the booking holding the slot or ErrNotFound.
	FindBySlot(ctx context.Context, resourceID, timeSlot string) (*domain.Booking, error)
	Create(ctx context.Context, booking domain.Booking) error
}

type ForumAccessor interface {
	// GetPost returns the post or ErrNotFound.
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	CreatePost(ctx context.Context, post domain.Post) error
	// ApplyPostDelta updates the counters conditionally on the version read by GetPost.
	ApplyPostDelta(ctx context.Context, postID string, delta domain.PostDelta) error
	AppendComment(ctx context.Context, comment domain.Comment) error
}

// Seeder loads catalog data outside of the order path.
type Seeder interface {
	PutItem(ctx context.Context, item domain.Item) error
}
