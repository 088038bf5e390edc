package port

import (
	"context"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

// ReportingRepository serves read-only queries. Results are not isolated from
// concurrent writers.
type ReportingRepository interface {
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// ItemsByStock returns up to limit items ordered by ascending stock level.
	ItemsByStock(ctx context.Context, limit int) ([]domain.Item, error)

	// RecentSales returns up to limit sale events, newest first.
	RecentSales(ctx context.Context, limit int) ([]domain.SaleEvent, error)

	// OrdersByPurchaser returns up to limit orders of the purchaser, newest first.
	OrdersByPurchaser(ctx context.Context, purchaserID string, limit int) ([]domain.Order, error)

	// CommentsForPost returns the comments of a post, oldest first.
	CommentsForPost(ctx context.Context, postID string) ([]domain.Comment, error)
}

// Store is implemented by every storage adapter.
type Store interface {
	TxStore
	ReportingRepository
	Seeder
}
