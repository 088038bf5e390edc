package service

import (
	"fmt"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

// ValidateCart checks the structure of a cart before any storage access. It
// does not look at stock: that is only meaningful inside the order transaction.
func ValidateCart(req domain.CartRequest) error {
	verr := validateStruct(req)

	totals := make(map[string]int, len(req.Lines))
	for i, line := range req.Lines {
		if line.Price.IsNegative() {
			verr.Add(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
		// Out-of-range quantities were already reported by the struct tags.
		if line.Quantity <= 0 || line.Quantity > domain.MaxLineQuantity {
			continue
		}
		if totals[line.ItemID]+line.Quantity > domain.MaxLineQuantity {
			verr.Add(fmt.Sprintf("items[%d].quantity", i),
				fmt.Sprintf("brings the total for %s above %d", line.ItemID, domain.MaxLineQuantity))
			continue
		}
		totals[line.ItemID] += line.Quantity
	}
	if req.ClaimedTotal.IsNegative() {
		verr.Add("total_price", "must not be negative")
	}

	return verr.OrNil()
}
