package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
)

// InventoryRepository keeps stock in memory. A transaction works on a copy of the
// stock that replaces the committed state only when fn succeeds.
type InventoryRepository struct {
	mu      sync.Mutex
	items   map[string]domain.Item
	recipes map[string][]domain.RecipeLine
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		items:   make(map[string]domain.Item),
		recipes: make(map[string][]domain.RecipeLine),
	}
}

// PutItem adds or replaces a stock record.
func (r *InventoryRepository) PutItem(item domain.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

// PutRecipe sets the ingredient lines of a menu item.
func (r *InventoryRepository) PutRecipe(menuItemID string, lines ...domain.RecipeLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipes[menuItemID] = append([]domain.RecipeLine(nil), lines...)
}

func (r *InventoryRepository) Item(id string) (domain.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	return it, ok
}

func (r *InventoryRepository) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := make(map[string]domain.Item, len(r.items))
	for id, it := range r.items {
		work[id] = it
	}
	if err := fn(&inventoryTx{items: work, recipes: r.recipes}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.items = work
	return nil
}

type inventoryTx struct {
	items   map[string]domain.Item
	recipes map[string][]domain.RecipeLine
}

func (t *inventoryTx) Recipe(ctx context.Context, menuItemID string) ([]domain.RecipeLine, error) {
	_ = ctx
	return append([]domain.RecipeLine(nil), t.recipes[menuItemID]...), nil
}

func (t *inventoryTx) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	_ = ctx
	for _, it := range t.items {
		if strings.EqualFold(it.Name, name) {
			found := it
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *inventoryTx) Get(ctx context.Context, id string) (*domain.Item, error) {
	_ = ctx
	it, ok := t.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &it, nil
}

func (t *inventoryTx) Save(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if _, ok := t.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	t.items[item.ID] = *item
	return nil
}
