package order

import "github.com/shopspring/decimal"

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPreparing, ItemReady, ItemServed:
		return true
	}
	return false
}

// Alerting reports whether reaching this status should sound the kitchen alert.
func (s ItemStatus) Alerting() bool {
	return s == ItemReady || s == ItemServed
}

type Category string

const (
	CategoryAppetizer Category = "appetizer"
	CategoryMain      Category = "main"
	CategoryDessert   Category = "dessert"
	CategoryBeverage  Category = "beverage"
	CategorySide      Category = "side"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAppetizer, CategoryMain, CategoryDessert, CategoryBeverage, CategorySide:
		return true
	}
	return false
}

// PrepMinutes is the default preparation time for the category.
// Unknown categories panic instead of falling back to a default.
func (c Category) PrepMinutes() int {
	switch c {
	case CategoryAppetizer:
		return 8
	case CategoryMain:
		return 15
	case CategoryDessert:
		return 6
	case CategoryBeverage:
		return 2
	case CategorySide:
		return 5
	}
	panic("order: unhandled category " + string(c))
}

// Color is the display color used by the kitchen surface for the category.
func (c Category) Color() string {
	switch c {
	case CategoryAppetizer:
		return "amber"
	case CategoryMain:
		return "red"
	case CategoryDessert:
		return "pink"
	case CategoryBeverage:
		return "blue"
	case CategorySide:
		return "green"
	}
	panic("order: unhandled category " + string(c))
}

// Item is one order line. TrackingIDs sub-track individual units of the product within the order.
type Item struct {
	ID          string          `json:"id"`
	MenuItemID  string          `json:"menuItemId,omitempty"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Status      ItemStatus      `json:"status"`
	PrepTime    *int            `json:"prepTime,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	TrackingIDs []string        `json:"itemOrderIds,omitempty"`
}
