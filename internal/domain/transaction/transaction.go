package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePayment Type = "payment"
	TypeRefund  Type = "refund"
	TypeVoid    Type = "void"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Log is an append-only transaction record; it is never mutated after creation.
type Log struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	CustomerID    string          `json:"customerId,omitempty"`
}

// Target is the write-queue target name under which transaction logs are delivered.
const Target = "transaction_log"
