package inventory

import "time"

// StockDeductedEvent is emitted after an order's deductions commit.
type StockDeductedEvent struct {
	OrderID    string
	Deductions []Deduction
	Skipped    []string
	OccurredAt time.Time
}

func (StockDeductedEvent) EventName() string { return "inventory.deducted" }

func NewStockDeductedEvent(orderID string, deductions []Deduction, skipped []string) StockDeductedEvent {
	return StockDeductedEvent{
		OrderID:    orderID,
		Deductions: deductions,
		Skipped:    skipped,
		OccurredAt: time.Now().UTC(),
	}
}
