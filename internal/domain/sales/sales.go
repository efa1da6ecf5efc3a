package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is an order archived to sales history.
type Record struct {
	OrderID       string
	OrderNumber   string
	Total         decimal.Decimal
	PaymentMethod string
	ItemCount     int
	CompletedAt   time.Time
}

// Archive is sales history storage. Insert is not idempotent by itself; callers
// check Exists by order number first so each order is archived once.
type Archive interface {
	Exists(ctx context.Context, orderNumber string) (bool, error)
	Insert(ctx context.Context, r Record) error
}

// ArchiveOnce inserts r unless its order number is already archived.
func ArchiveOnce(ctx context.Context, a Archive, r Record) (inserted bool, err error) {
	exists, err := a.Exists(ctx, r.OrderNumber)
	if err != nil {
		return false, fmt.Errorf("sales: lookup %s: %w", r.OrderNumber, err)
	}
	if exists {
		return false, nil
	}
	if err := a.Insert(ctx, r); err != nil {
		return false, fmt.Errorf("sales: insert %s: %w", r.OrderNumber, err)
	}
	return true, nil
}
