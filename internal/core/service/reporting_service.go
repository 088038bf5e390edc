package service

import (
	"context"
	"errors"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

const (
	DefaultReportLimit = 10
	MaxReportLimit     = 100
)

// ReportingService serves the read paths used by dashboards. None of its
// queries run inside a transaction.
type ReportingService struct {
	repo port.ReportingRepository
}

func NewReportingService(repo port.ReportingRepository) *ReportingService {
	return &ReportingService{repo: repo}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultReportLimit
	case n > MaxReportLimit:
		return MaxReportLimit
	default:
		return n
	}
}

func (s *ReportingService) RecentSales(ctx context.Context, limit int) ([]domain.SaleEvent, error) {
	sales, err := s.repo.RecentSales(ctx, clampLimit(limit))
	if err != nil {
		return nil, classify("recent sales", err)
	}
	return sales, nil
}

// LowStockItems returns items ordered by ascending stock level.
func (s *ReportingService) LowStockItems(ctx context.Context, limit int) ([]domain.Item, error) {
	items, err := s.repo.ItemsByStock(ctx, clampLimit(limit))
	if err != nil {
		return nil, classify("low stock items", err)
	}
	return items, nil
}

func (s *ReportingService) OrdersForPurchaser(ctx context.Context, purchaserID string, limit int) ([]domain.Order, error) {
	if purchaserID == "" {
		verr := &domain.ValidationError{}
		verr.Add("user_id", "is required")
		return nil, verr
	}
	orders, err := s.repo.OrdersByPurchaser(ctx, purchaserID, clampLimit(limit))
	if err != nil {
		return nil, classify("orders for purchaser", err)
	}
	return orders, nil
}

func (s *ReportingService) Item(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, &domain.ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return nil, classify("get item", err)
	}
	return item, nil
}

func (s *ReportingService) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	comments, err := s.repo.CommentsForPost(ctx, postID)
	if err != nil {
		return nil, classify("comments", err)
	}
	return comments, nil
}
