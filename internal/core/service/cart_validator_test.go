package service

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/canteen-engine/internal/core/domain"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidateCart(t *testing.T) {
	tests := []struct {
		name   string
		req    domain.CartRequest
		fields []string
	}{
		{
			name: "valid",
			req: domain.CartRequest{
				PurchaserID:  "u1",
				Lines:        []domain.CartLine{{ItemID: "burger", Price: decimal.NewFromInt(50), Quantity: 2}},
				ClaimedTotal: decimal.NewFromInt(100),
			},
		},
		{
			name:   "missing purchaser",
			req:    cart("", line("burger", 1)),
			fields: []string{"user_id"},
		},
		{
			name:   "empty cart",
			req:    domain.CartRequest{PurchaserID: "u1", Lines: []domain.CartLine{}},
			fields: []string{"items"},
		},
		{
			name:   "nil cart",
			req:    domain.CartRequest{PurchaserID: "u1"},
			fields: []string{"items"},
		},
		{
			name:   "zero quantity",
			req:    cart("u1", line("burger", 1), line("coffee", 0)),
			fields: []string{"items[1].quantity"},
		},
		{
			name:   "negative quantity",
			req:    cart("u1", line("burger", -2)),
			fields: []string{"items[0].quantity"},
		},
		{
			name:   "empty item id",
			req:    cart("u1", line("", 1)),
			fields: []string{"items[0].item_id"},
		},
		{
			name:   "malformed item id",
			req:    cart("u1", line("bad id!", 1)),
			fields: []string{"items[0].item_id"},
		},
		{
			name:   "quantity above cap",
			req:    cart("u1", line("burger", domain.MaxLineQuantity+1)),
			fields: []string{"items[0].quantity"},
		},
		{
			name:   "max int quantity",
			req:    cart("u1", line("burger", math.MaxInt)),
			fields: []string{"items[0].quantity"},
		},
		{
			name: "repeated lines up to the cap",
			req:  cart("u1", line("burger", 600), line("burger", 400), line("coffee", domain.MaxLineQuantity)),
		},
		{
			name:   "repeated lines above the cap",
			req:    cart("u1", line("burger", domain.MaxLineQuantity), line("burger", 1)),
			fields: []string{"items[1].quantity"},
		},
		{
			name:   "repeated lines near max int",
			req:    cart("u1", line("burger", math.MaxInt), line("burger", 2)),
			fields: []string{"items[0].quantity"},
		},
		{
			name:   "repeated lines near max int after a valid line",
			req:    cart("u1", line("burger", 2), line("burger", math.MaxInt-1)),
			fields: []string{"items[1].quantity"},
		},
		{
			name: "negative price",
			req: cart("u1", domain.CartLine{
				ItemID: "burger", Price: decimal.NewFromInt(-1), Quantity: 1,
			}),
			fields: []string{"items[0].price"},
		},
		{
			name: "negative total",
			req: domain.CartRequest{
				PurchaserID:  "u1",
				Lines:        []domain.CartLine{line("burger", 1)},
				ClaimedTotal: decimal.NewFromInt(-5),
			},
			fields: []string{"total_price"},
		},
		{
			name:   "every offending field is reported",
			req:    cart("", line("", 0), line("fries", 1)),
			fields: []string{"user_id", "items[0].item_id", "items[0].quantity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCart(tt.req)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrValidationFailed)
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
			assert.Equal(t, domain.CodeValidationFailed, domain.CodeOf(err))
		})
	}
}

func TestValidateCart_LongPurchaserID(t *testing.T) {
	err := ValidateCart(cart(strings.Repeat("x", 129), line("burger", 1)))
	assert.Equal(t, []string{"user_id"}, fieldNames(t, err))
}

func TestValidateCart_ZeroClaimedTotalAllowed(t *testing.T) {
	assert.NoError(t, ValidateCart(cart("u1", line("burger", 1))))
}
