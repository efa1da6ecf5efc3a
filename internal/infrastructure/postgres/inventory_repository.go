package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository runs each order's deductions in one database transaction.
// Rows read inside the transaction are locked until it ends.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&inventoryTx{tx: tx})
	})
}

type inventoryTx struct {
	tx pgx.Tx
}

func (t *inventoryTx) Recipe(ctx context.Context, menuItemID string) ([]domain.RecipeLine, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT menu_item_id, inventory_item_id, quantity FROM recipes WHERE menu_item_id = $1 ORDER BY inventory_item_id`,
		menuItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: recipe %s: %w", menuItemID, err)
	}
	defer rows.Close()

	var lines []domain.RecipeLine
	for rows.Next() {
		var l domain.RecipeLine
		if err := rows.Scan(&l.MenuItemID, &l.InventoryItemID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan recipe line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *inventoryTx) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	return t.one(ctx, `SELECT id, name, quantity, unit, updated_at FROM inventory_items
		WHERE lower(name) = lower($1) ORDER BY id LIMIT 1 FOR UPDATE`, name)
}

func (t *inventoryTx) Get(ctx context.Context, id string) (*domain.Item, error) {
	return t.one(ctx, `SELECT id, name, quantity, unit, updated_at FROM inventory_items
		WHERE id = $1 FOR UPDATE`, id)
}

func (t *inventoryTx) Save(ctx context.Context, item *domain.Item) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE inventory_items SET quantity = $2, updated_at = $3 WHERE id = $1`,
		item.ID, item.Quantity, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save inventory item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *inventoryTx) one(ctx context.Context, q string, arg any) (*domain.Item, error) {
	var it domain.Item
	err := t.tx.QueryRow(ctx, q, arg).Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: inventory item: %w", err)
	}
	return &it, nil
}
