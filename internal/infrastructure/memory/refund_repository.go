package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
)

type RefundRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Request
}

func NewRefundRepository() *RefundRepository {
	return &RefundRepository{byID: make(map[string]*domain.Request)}
}

func (r *RefundRepository) Create(ctx context.Context, req *domain.Request) error {
	_ = ctx
	if req == nil || req.ID == "" {
		return fmt.Errorf("refund repository: id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[req.ID]; exists {
		return fmt.Errorf("refund repository: duplicate id %s", req.ID)
	}
	r.byID[req.ID] = req.Clone()
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, req *domain.Request) error {
	_ = ctx
	if req == nil || req.ID == "" {
		return fmt.Errorf("refund repository: id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[req.ID]; !exists {
		return domain.ErrNotFound
	}
	r.byID[req.ID] = req.Clone()
	return nil
}

func (r *RefundRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return req.Clone(), nil
}

// List returns matching requests, newest first.
func (r *RefundRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Request, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Request, 0, len(r.byID))
	for _, req := range r.byID {
		if f.Match(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}
