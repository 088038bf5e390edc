package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

type OrderService struct {
	store  port.TxStore
	retry  RetryPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(store port.TxStore, retry RetryPolicy, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:  store,
		retry:  retry.normalized(),
		logger: nopIfNil(logger).Named("orders"),
		now:    time.Now,
	}
}

// demand is the total quantity requested for one distinct item.
type demand struct {
	itemID   string
	quantity int
}

// collapse merges repeated item ids, keeping first-appearance order. The cart
// must have passed ValidateCart, which bounds every per-item sum.
func collapse(lines []domain.CartLine) []demand {
	index := make(map[string]int, len(lines))
	out := make([]demand, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ItemID]; ok {
			out[i].quantity += l.Quantity
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, demand{itemID: l.ItemID, quantity: l.Quantity})
	}
	return out
}

// PlaceOrder validates the cart, then atomically checks stock for every line,
// records the order and its sale event, and moves stock into the sold
// counters. Either everything is written or nothing is.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.CartRequest) (*domain.Order, error) {
	if err := ValidateCart(req); err != nil {
		return nil, err
	}

	demands := collapse(req.Lines)

	var placed *domain.Order
	err := s.retry.run(ctx, s.logger, "place order", func() error {
		order, err := s.placeOnce(ctx, req, demands)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		err = classify("place order", err)
		s.logFailure(req.PurchaserID, err)
		return nil, err
	}

	if !req.ClaimedTotal.IsZero() && !req.ClaimedTotal.Equal(placed.TotalPrice) {
		s.logger.Warn("claimed total differs from computed total",
			zap.String("order_id", placed.ID),
			zap.String("claimed", req.ClaimedTotal.String()),
			zap.String("computed", placed.TotalPrice.String()),
		)
	}
	s.logger.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.String("purchaser_id", placed.PurchaserID),
		zap.String("total", placed.TotalPrice.String()),
		zap.Int("item_count", placed.ItemCount()),
	)
	return placed, nil
}

func (s *OrderService) placeOnce(ctx context.Context, req domain.CartRequest, demands []demand) (*domain.Order, error) {
	var placed *domain.Order

	err := s.store.RunInTx(ctx, func(tx port.Tx) error {
		inv := tx.Inventory()

		items := make(map[string]*domain.Item, len(demands))
		for _, d := range demands {
			item, err := inv.Get(ctx, d.itemID)
			if errors.Is(err, port.ErrNotFound) {
				return &domain.ItemNotFoundError{ItemID: d.itemID}
			}
			if err != nil {
				return fmt.Errorf("read item %s: %w", d.itemID, err)
			}
			items[d.itemID] = item
		}

		// Every line is checked before the first write.
		for _, d := range demands {
			if item := items[d.itemID]; !item.CanFulfil(d.quantity) {
				return &domain.InsufficientStockError{
					ItemID:    d.itemID,
					Available: item.StockLevel,
					Requested: d.quantity,
				}
			}
		}

		now := s.now().UTC()
		order := buildOrder(req, items, now)
		sale := domain.SaleEvent{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Amount:    order.TotalPrice,
			ItemCount: order.ItemCount(),
			CreatedAt: now,
		}

		if err := tx.Orders().Append(ctx, order); err != nil {
			return fmt.Errorf("append order: %w", err)
		}
		if err := tx.Sales().Append(ctx, sale); err != nil {
			return fmt.Errorf("append sale: %w", err)
		}

		// Sorted so that stores taking row locks always lock in the same order.
		ids := make([]string, 0, len(demands))
		quantities := make(map[string]int, len(demands))
		for _, d := range demands {
			ids = append(ids, d.itemID)
			quantities[d.itemID] = d.quantity
		}
		sort.Strings(ids)

		for _, id := range ids {
			delta := domain.SaleDelta(quantities[id], items[id].Price)
			if err := inv.ApplyDelta(ctx, id, delta); err != nil {
				return fmt.Errorf("apply delta to %s: %w", id, err)
			}
		}

		placed = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// buildOrder snapshots each line with the stored name and price. The price the
// client saw is never trusted.
func buildOrder(req domain.CartRequest, items map[string]*domain.Item, now time.Time) domain.Order {
	lines := make([]domain.LineItem, 0, len(req.Lines))
	total := decimal.Zero
	for _, l := range req.Lines {
		item := items[l.ItemID]
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lines = append(lines, domain.LineItem{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  l.Quantity,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	return domain.Order{
		ID:          uuid.NewString(),
		PurchaserID: req.PurchaserID,
		Lines:       lines,
		TotalPrice:  total,
		CreatedAt:   now,
	}
}

func (s *OrderService) logFailure(purchaserID string, err error) {
	fields := []zap.Field{
		zap.String("purchaser_id", purchaserID),
		zap.String("code", string(domain.CodeOf(err))),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, domain.ErrStorageFailure):
		s.logger.Error("order failed", fields...)
	case errors.Is(err, domain.ErrContention):
		s.logger.Warn("order failed", fields...)
	default:
		s.logger.Info("order rejected", fields...)
	}
}
