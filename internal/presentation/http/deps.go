package httppresentation

import (
	"context"
	"net/http"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application/integration"
	apporder "github.com/Zhima-Mochi/kitchen-ops/internal/application/order"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/hardware"
	domainOrder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domainRefund "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/writequeue"

	"github.com/shopspring/decimal"
)

type Orders interface {
	Orders() []*domainOrder.Order
	Get(id string) (*domainOrder.Order, error)
	OrdersByClient() []apporder.ClientGroup
	AddOrder(ctx context.Context, draft domainOrder.Draft) (*domainOrder.Order, error)
	UpdateItemStatus(ctx context.Context, orderID, itemID string, status domainOrder.ItemStatus) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domainOrder.Status) error
	UpdateOrderPriority(ctx context.Context, orderID string, priority domainOrder.Priority) error
	UpdateOrderNotes(ctx context.Context, orderID, notes string) error
}

type Refunds interface {
	Create(ctx context.Context, in domainRefund.Input) (*domainRefund.Request, error)
	Approve(ctx context.Context, id, approvedBy, notes string) (*domainRefund.Request, error)
	Reject(ctx context.Context, id, rejectedBy, reason string) (*domainRefund.Request, error)
	List(ctx context.Context, f domainRefund.Filter) ([]*domainRefund.Request, error)
	CanApproveRefunds(role domainRefund.Role, amount decimal.Decimal) bool
}

type Integration interface {
	CompletePayment(ctx context.Context, p integration.PaymentCompletion) (*integration.PaymentOutcome, error)
	ProcessRefund(ctx context.Context, id string, method domainRefund.Method, transactionID string) (*domainRefund.Request, error)
	DeviceStatus() []hardware.Status
}

type WriteQueue interface {
	Entries() []writequeue.Entry
	ProcessQueue(ctx context.Context) writequeue.DrainResult
}

// Deps are the use cases served over HTTP. Live is optional and serves GET /ws.
type Deps struct {
	Orders      Orders
	Refunds     Refunds
	Integration Integration
	Queue       WriteQueue
	Live        http.Handler
}
