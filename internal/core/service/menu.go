package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

type menuStore interface {
	port.Seeder
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

// SeedMenu stores every item that does not exist yet. Existing items keep
// their stock and counters. It returns the number of items created.
func SeedMenu(ctx context.Context, store menuStore, items []domain.Item, logger *zap.Logger) (int, error) {
	logger = nopIfNil(logger)

	created := 0
	for _, item := range items {
		_, err := store.GetItem(ctx, item.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, port.ErrNotFound) {
			return created, fmt.Errorf("check item %s: %w", item.ID, err)
		}
		if err := store.PutItem(ctx, item); err != nil {
			return created, fmt.Errorf("seed item %s: %w", item.ID, err)
		}
		created++
	}

	logger.Info("menu seeded", zap.Int("created", created), zap.Int("total", len(items)))
	return created, nil
}
