package order

import "time"

// OrderUpdatedEvent tells other surfaces that the projection of an order changed and should be refreshed.
type OrderUpdatedEvent struct {
	OrderID    string
	Status     Status
	Reason     string
	OccurredAt time.Time
}

func (OrderUpdatedEvent) EventName() string { return "order.updated" }

func NewOrderUpdatedEvent(o *Order, reason string) OrderUpdatedEvent {
	return OrderUpdatedEvent{
		OrderID:    o.ID,
		Status:     o.Status,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// ItemReadyEvent is emitted when an item reaches ready or served; kitchen surfaces sound an alert.
type ItemReadyEvent struct {
	OrderID     string
	OrderNumber string
	ItemID      string
	ItemName    string
	Status      ItemStatus
	OccurredAt  time.Time
}

func (ItemReadyEvent) EventName() string { return "order.item_ready" }

func NewItemReadyEvent(o *Order, it Item) ItemReadyEvent {
	return ItemReadyEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		ItemID:      it.ID,
		ItemName:    it.Name,
		Status:      it.Status,
		OccurredAt:  time.Now().UTC(),
	}
}

// CompletedLine is the part of an order line the inventory context needs.
type CompletedLine struct {
	MenuItemID string
	Name       string
	Quantity   int
}

// OrderCompletedEvent is emitted once per order when it reaches completed.
type OrderCompletedEvent struct {
	OrderID     string
	OrderNumber string
	Lines       []CompletedLine
	OccurredAt  time.Time
}

func (OrderCompletedEvent) EventName() string { return "order.completed" }

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	lines := make([]CompletedLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, CompletedLine{MenuItemID: it.MenuItemID, Name: it.Name, Quantity: it.Quantity})
	}
	return OrderCompletedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Lines:       lines,
		OccurredAt:  time.Now().UTC(),
	}
}
