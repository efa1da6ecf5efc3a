package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

// OpensDrawer reports whether settling with this method needs the cash drawer.
func (m Method) OpensDrawer() bool { return m == MethodCash }

// ProcessedEvent is emitted once a payment is recorded.
type ProcessedEvent struct {
	OrderID     string
	OrderNumber string
	Amount      decimal.Decimal
	Method      Method
	OccurredAt  time.Time
}

func (ProcessedEvent) EventName() string { return "payment.processed" }

// IntegrationErrorEvent is emitted when a post-payment side effect fails.
type IntegrationErrorEvent struct {
	OrderID    string
	Step       string
	Error      string
	OccurredAt time.Time
}

func (IntegrationErrorEvent) EventName() string { return "payment.integration_error" }
