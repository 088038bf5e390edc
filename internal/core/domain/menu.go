package domain

import "github.com/shopspring/decimal"

type menuEntry struct {
	id       string
	name     string
	category string
	price    int64
}

var canteenMenu = []menuEntry{
	{"item-1", "Samosa", "Snacks", 15},
	{"item-2", "Chaat", "Snacks", 20},
	{"item-7", "Noodles", "Snacks", 40},
	{"item-8", "Fried Rice", "Snacks", 50},
	{"item-9", "Vada Pav", "Snacks", 15},
	{"item-10", "Idli", "Snacks", 30},
	{"item-11", "Medu Vada", "Snacks", 35},
	{"item-12", "Pizza", "Snacks", 120},
	{"item-13", "Burger", "Snacks", 70},
	{"item-3", "Cold Coffee", "Drinks", 50},
	{"item-4", "Masala Chai", "Drinks", 15},
	{"item-5", "Veg Thali", "Meals", 120},
	{"item-6", "Chole Bhature", "Meals", 90},
}

// DefaultMenu returns the canteen catalog with every item stocked at stock.
func DefaultMenu(stock int) []Item {
	items := make([]Item, 0, len(canteenMenu))
	for _, e := range canteenMenu {
		items = append(items, Item{
			ID:           e.id,
			Name:         e.name,
			Category:     e.category,
			Price:        decimal.NewFromInt(e.price),
			StockLevel:   stock,
			TotalRevenue: decimal.Zero,
		})
	}
	return items
}
