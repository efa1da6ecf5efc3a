package refund

import "context"

// Filter narrows a listing; empty fields match everything.
type Filter struct {
	OrderID string
	Status  Status
}

func (f Filter) Match(r *Request) bool {
	if f.OrderID != "" && r.OrderID != f.OrderID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Repository is the refund persistence API.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Update(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, f Filter) ([]*Request, error)
}
