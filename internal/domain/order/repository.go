package order

import "context"

// API is the order persistence API, the system of record for orders.
// One order or item per call; writes are last-write-wins.
type API interface {
	Create(ctx context.Context, draft Draft) (*Order, error)
	PatchStatus(ctx context.Context, orderID string, status Status) error
	PatchPriority(ctx context.Context, orderID string, priority Priority) error
	PatchNotes(ctx context.Context, orderID string, notes string) error
	PatchItemStatus(ctx context.Context, orderID, itemID string, status ItemStatus) error
	List(ctx context.Context) ([]*Order, error)
}
