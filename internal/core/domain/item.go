package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	StockLevel   int             `json:"stock_level"`
	ItemsSold    int             `json:"items_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Version      int64           `json:"-"` // optimistic locking
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanFulfil reports whether the item has at least quantity units in stock.
func (i *Item) CanFulfil(quantity int) bool {
	return i.StockLevel >= quantity
}

// Apply returns a copy of the item with delta applied and the version bumped.
func (i Item) Apply(delta ItemDelta, now time.Time) Item {
	i.StockLevel += delta.Stock
	i.ItemsSold += delta.Sold
	i.TotalRevenue = i.TotalRevenue.Add(delta.Revenue)
	i.Version++
	i.UpdatedAt = now
	return i
}

// ItemDelta is a relative change to an item's counters. Stock is negative for sales.
type ItemDelta struct {
	Stock   int
	Sold    int
	Revenue decimal.Decimal
}

// SaleDelta is the delta for selling quantity units at unitPrice.
func SaleDelta(quantity int, unitPrice decimal.Decimal) ItemDelta {
	return ItemDelta{
		Stock:   -quantity,
		Sold:    quantity,
		Revenue: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
