package order

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrInvalidStatus   = errors.New("order: invalid status")
	ErrInvalidPriority = errors.New("order: invalid priority")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
	ErrEmptyOrder      = errors.New("order: at least one item is required")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReady, StatusCompleted:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusReady:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Type string

const (
	TypeDineIn   Type = "dine-in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Type          Type            `json:"orderType"`
	TableNumber   *int            `json:"tableNumber,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        Status          `json:"status"`
	Priority      Priority        `json:"priority"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	EstimatedTime *int            `json:"estimatedTime,omitempty"`
	ChefNotes     string          `json:"chefNotes,omitempty"`
}

// Draft is an order as submitted by a point of sale, before the system of record assigns an id.
type Draft struct {
	OrderNumber   string   `json:"orderNumber"`
	Items         []Item   `json:"items"`
	Type          Type     `json:"orderType"`
	TableNumber   *int     `json:"tableNumber,omitempty"`
	CustomerName  string   `json:"customerName,omitempty"`
	PaymentMethod string   `json:"paymentMethod"`
	Priority      Priority `json:"priority,omitempty"`
	ChefNotes     string   `json:"chefNotes,omitempty"`
}

// New builds a pending order from a draft. Item statuses default to pending and the
// total is computed from the line items.
func New(id string, d Draft, now time.Time) (*Order, error) {
	if len(d.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	priority := d.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	items := make([]Item, len(d.Items))
	total := decimal.Zero
	longest := 0
	for i, it := range d.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.Price.IsNegative() {
			return nil, ErrInvalidAmount
		}
		if it.Status == "" {
			it.Status = ItemPending
		}
		if !it.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		if it.PrepTime == nil && it.Category.Valid() {
			minutes := it.Category.PrepMinutes()
			it.PrepTime = &minutes
		}
		if it.PrepTime != nil && *it.PrepTime > longest {
			longest = *it.PrepTime
		}
		it.TrackingIDs = append([]string(nil), it.TrackingIDs...)
		items[i] = it
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	o := &Order{
		ID:            id,
		OrderNumber:   d.OrderNumber,
		Items:         items,
		Total:         total,
		Type:          d.Type,
		TableNumber:   d.TableNumber,
		CustomerName:  d.CustomerName,
		PaymentMethod: d.PaymentMethod,
		Status:        StatusPending,
		Priority:      priority,
		CreatedAt:     now,
		UpdatedAt:     now,
		ChefNotes:     d.ChefNotes,
	}
	if longest > 0 {
		o.EstimatedTime = &longest
	}
	o.Status = DeriveStatus(o.Status, o.Items)
	return o, nil
}

// Item returns the index of the line item with the given id.
func (o *Order) Item(itemID string) (int, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i, true
		}
	}
	return -1, false
}

// SetItemStatus changes one item's status and re-derives the aggregate status.
// It returns the item's previous status.
func (o *Order) SetItemStatus(itemID string, status ItemStatus, now time.Time) (ItemStatus, error) {
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	idx, ok := o.Item(itemID)
	if !ok {
		return "", ErrNotFound
	}
	prev := o.Items[idx].Status
	o.Items[idx].Status = status
	o.Status = DeriveStatus(o.Status, o.Items)
	o.UpdatedAt = now
	return prev, nil
}

// SetStatus is the explicit override used for manual completion; it bypasses derivation.
func (o *Order) SetStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

func (o *Order) SetPriority(p Priority, now time.Time) error {
	if !p.Valid() {
		return ErrInvalidPriority
	}
	o.Priority = p
	o.UpdatedAt = now
	return nil
}

func (o *Order) SetNotes(notes string, now time.Time) {
	o.ChefNotes = notes
	o.UpdatedAt = now
}

// ClientKey identifies who the order is for: the table for dine-in, the customer otherwise.
func (o *Order) ClientKey() string {
	if o.Type == TypeDineIn && o.TableNumber != nil {
		return "table:" + strconv.Itoa(*o.TableNumber)
	}
	if o.CustomerName != "" {
		return "customer:" + o.CustomerName
	}
	return "customer:walk-in"
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.TrackingIDs = append([]string(nil), it.TrackingIDs...)
		if it.PrepTime != nil {
			v := *it.PrepTime
			it.PrepTime = &v
		}
		c.Items[i] = it
	}
	if o.TableNumber != nil {
		v := *o.TableNumber
		c.TableNumber = &v
	}
	if o.EstimatedTime != nil {
		v := *o.EstimatedTime
		c.EstimatedTime = &v
	}
	return &c
}
