package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/adapter/storage"
	"github.com/rl1809/canteen-engine/internal/config"
	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Fires totalRequests concurrent single-unit orders at one item and checks
// that exactly initialStock succeed. The store comes from the usual config,
// e.g. CANTEEN_STORE_DRIVER=redis.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, closeStore, err := storage.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s store: %v\n", cfg.Store.Driver, err)
		os.Exit(1)
	}
	defer closeStore()

	itemID := "stress-" + uuid.NewString()[:8]
	if err := store.PutItem(ctx, domain.Item{
		ID:         itemID,
		Name:       "Stress Burger",
		Category:   "Snacks",
		Price:      decimal.NewFromInt(70),
		StockLevel: initialStock,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed item: %v\n", err)
		os.Exit(1)
	}

	// Every loser can be beaten at most once by each other buyer.
	orderService := service.NewOrderService(store, service.RetryPolicy{
		MaxAttempts: totalRequests,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  20 * time.Millisecond,
	}, nil)

	var successCount, soldOutCount, contentionCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, domain.CartRequest{
				PurchaserID: fmt.Sprintf("user-%d", userID),
				Lines:       []domain.CartLine{{ItemID: itemID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			case errors.Is(err, domain.ErrContention):
				contentionCount.Add(1)
			default:
				errorCount.Add(1)
				fmt.Fprintf(os.Stderr, "user-%d: %v\n", userID, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:            %s\n", cfg.Store.Driver)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Contention:       %d\n", contentionCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success == initialStock {
		fmt.Printf("PASS: exactly %d orders succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d successful orders, got %d\n", initialStock, success)
		failed = true
	}

	item, err := store.GetItem(ctx, itemID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read item: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Final Stock: %d, Sold: %d\n", item.StockLevel, item.ItemsSold)

	if item.StockLevel == 0 && item.ItemsSold == initialStock {
		fmt.Println("PASS: stock depleted to 0 with no oversell")
	} else {
		fmt.Printf("FAIL: expected stock 0 and %d sold, got %d and %d\n", initialStock, item.StockLevel, item.ItemsSold)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}
