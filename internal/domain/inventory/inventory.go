package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("inventory: item not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
)

// Item is a stock-tracked inventory record (an ingredient or a directly sold product).
type Item struct {
	ID        string
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	UpdatedAt time.Time
}

// Deduct removes amount from stock. Stock may go below zero: the goods were already
// served, so the shortfall is recorded rather than refused.
func (i *Item) Deduct(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidQuantity
	}
	i.Quantity = i.Quantity.Sub(amount)
	i.UpdatedAt = now
	return nil
}

// RecipeLine says one unit of a menu item consumes Quantity of an inventory item.
type RecipeLine struct {
	MenuItemID      string
	InventoryItemID string
	Quantity        decimal.Decimal
}

// DeductionItem is one order line to deduct stock for. MenuItemID may be empty,
// in which case only the name match applies.
type DeductionItem struct {
	MenuItemID string
	ItemName   string
	Quantity   int
}

// Deduction records a stock change applied by the coordinator.
type Deduction struct {
	InventoryItemID string
	Name            string
	Amount          decimal.Decimal
	Remaining       decimal.Decimal
	// Source is "recipe" or "direct".
	Source string
}
