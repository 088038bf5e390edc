package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of one item in a cart, summed over
// repeated lines for that item.
const MaxLineQuantity = 1000

// CartLine is one line of a submitted cart, as presented to the user.
type CartLine struct {
	ItemID   string          `json:"item_id" validate:"required,itemid"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gt=0,max=1000"`
}

// CartRequest is one checkout submission.
type CartRequest struct {
	PurchaserID  string          `json:"user_id" validate:"required,max=128"`
	Lines        []CartLine      `json:"items" validate:"required,min=1,dive"`
	ClaimedTotal decimal.Decimal `json:"total_price"`
}

// LineItem is the snapshot of an item stored with an order.
type LineItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Order struct {
	ID          string          `json:"id"`
	PurchaserID string          `json:"purchaser_id"`
	Lines       []LineItem      `json:"lines"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ItemCount sums the quantities of all line items.
func (o Order) ItemCount() int {
	count := 0
	for _, l := range o.Lines {
		count += l.Quantity
	}
	return count
}

// SaleEvent is the reporting record derived from exactly one order.
type SaleEvent struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	ItemCount int             `json:"item_count"`
	CreatedAt time.Time       `json:"created_at"`
}
