package hardware

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotConnected = errors.New("hardware: device not connected")

type State string

const (
	StateDisconnected State = "disconnected"
	StateReady        State = "ready"
	StateBusy         State = "busy"
	StateError        State = "error"
)

type Status struct {
	Device    string    `json:"device"`
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Device is the capability shared by every peripheral. The wire protocol lives behind it.
type Device interface {
	Name() string
	Connect(ctx context.Context) error
	Test(ctx context.Context) error
	Status() Status
	// Subscribe registers fn for status changes and returns a function that removes it.
	Subscribe(fn func(Status)) (unsubscribe func())
}

type Drawer interface {
	Device
	Open(ctx context.Context) error
}

type ReceiptLine struct {
	Name     string
	Quantity int
	Amount   decimal.Decimal
}

type Receipt struct {
	OrderNumber   string
	Lines         []ReceiptLine
	Total         decimal.Decimal
	PaymentMethod string
	IssuedAt      time.Time
}

type Printer interface {
	Device
	Print(ctx context.Context, r Receipt) error
}

type Scanner interface {
	Device
	Scan(ctx context.Context) (string, error)
}
