package inventory

import "context"

// Tx is the view of inventory storage inside one deduction transaction.
type Tx interface {
	// Recipe returns the ingredient lines of a menu item; empty when it has no recipe.
	Recipe(ctx context.Context, menuItemID string) ([]RecipeLine, error)
	// FindByName matches an inventory record by name, case-insensitively.
	FindByName(ctx context.Context, name string) (*Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	Save(ctx context.Context, item *Item) error
}

type Repository interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
