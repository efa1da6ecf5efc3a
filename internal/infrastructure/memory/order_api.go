package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// OrderAPI is an in-process system of record for orders. Writes are last-write-wins
// with no version check.
type OrderAPI struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	sequence []string
	ids      IDGenerator
}

func NewOrderAPI(ids IDGenerator) *OrderAPI {
	return &OrderAPI{
		orders: make(map[string]*domain.Order),
		ids:    ids,
	}
}

func (a *OrderAPI) Create(ctx context.Context, d domain.Draft) (*domain.Order, error) {
	_ = ctx
	o, err := domain.New(a.ids.NewID(), d, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.orders[o.ID]; exists {
		return nil, fmt.Errorf("order api: duplicate id %s", o.ID)
	}
	a.orders[o.ID] = o
	a.sequence = append(a.sequence, o.ID)
	return o.Clone(), nil
}

func (a *OrderAPI) PatchStatus(ctx context.Context, id string, status domain.Status) error {
	_ = ctx
	return a.patch(id, func(o *domain.Order, now time.Time) error { return o.SetStatus(status, now) })
}

func (a *OrderAPI) PatchPriority(ctx context.Context, id string, p domain.Priority) error {
	_ = ctx
	return a.patch(id, func(o *domain.Order, now time.Time) error { return o.SetPriority(p, now) })
}

func (a *OrderAPI) PatchNotes(ctx context.Context, id, notes string) error {
	_ = ctx
	return a.patch(id, func(o *domain.Order, now time.Time) error {
		o.SetNotes(notes, now)
		return nil
	})
}

// PatchItemStatus stores the item status as sent; the aggregate status is patched
// separately by the caller.
func (a *OrderAPI) PatchItemStatus(ctx context.Context, id, itemID string, status domain.ItemStatus) error {
	_ = ctx
	return a.patch(id, func(o *domain.Order, now time.Time) error {
		if !status.Valid() {
			return domain.ErrInvalidStatus
		}
		idx, ok := o.Item(itemID)
		if !ok {
			return domain.ErrNotFound
		}
		o.Items[idx].Status = status
		o.UpdatedAt = now
		return nil
	})
}

func (a *OrderAPI) List(ctx context.Context) ([]*domain.Order, error) {
	_ = ctx
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.Order, 0, len(a.sequence))
	for _, id := range a.sequence {
		out = append(out, a.orders[id].Clone())
	}
	return out, nil
}

func (a *OrderAPI) patch(id string, fn func(o *domain.Order, now time.Time) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	next := o.Clone()
	if err := fn(next, time.Now().UTC()); err != nil {
		return err
	}
	a.orders[id] = next
	return nil
}
