package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

func TestSeedMenu_KeepsExistingStock(t *testing.T) {
	ctx := context.Background()
	menu := domain.DefaultMenu(25)
	store := newSeededStore(t, menuItem("item-13", "70", 2))

	created, err := SeedMenu(ctx, store, menu, nil)
	require.NoError(t, err)
	assert.Equal(t, len(menu)-1, created)

	assert.Equal(t, 2, mustItem(t, store, "item-13").StockLevel)
	assert.Equal(t, 25, mustItem(t, store, "item-1").StockLevel)

	created, err = SeedMenu(ctx, store, menu, nil)
	require.NoError(t, err)
	assert.Zero(t, created)
}
