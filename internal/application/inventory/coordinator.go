package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application"
	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	coordinatorService = "inventory-coordinator"
	useCaseDeduct      = "inventory.deduct_for_order"
	peerInventory      = "inventory_db"

	sourceRecipe = "recipe"
	sourceDirect = "direct"
)

type DeductCommand struct {
	OrderID string
	Items   []domain.DeductionItem
}

type DeductionResult struct {
	OrderID    string
	Deductions []domain.Deduction
	// Skipped lists line items with neither a recipe nor a matching inventory record.
	Skipped []string
}

// Coordinator decrements stock for completed orders. All deductions of one order
// commit or roll back together.
type Coordinator struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	now       func() time.Time
	inst      application.Instruments
}

var _ application.UseCase[DeductCommand, *DeductionResult] = (*Coordinator)(nil)

func NewCoordinator(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Coordinator {
	return &Coordinator{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		inst:      application.NewInstruments(tel, coordinatorService),
	}
}

func (c *Coordinator) Execute(ctx context.Context, cmd DeductCommand) (*DeductionResult, error) {
	return c.DeductIngredientsForOrder(ctx, cmd.OrderID, cmd.Items)
}

// DeductIngredientsForOrder deducts stock for each line: recipe ingredients scaled by
// the ordered quantity when the menu item has a recipe, otherwise the ordered quantity
// from the inventory record with the same name. Lines matching neither are skipped.
func (c *Coordinator) DeductIngredientsForOrder(ctx context.Context, orderID string, items []domain.DeductionItem) (_ *DeductionResult, err error) {
	ctx, run := c.inst.Start(ctx, useCaseDeduct, "DeductIngredientsForOrder",
		attribute.String("order.id", orderID),
		attribute.Int("order.lines", len(items)),
	)
	defer func() { run.End(err) }()
	run.With(observability.F("order_id", orderID))

	for _, it := range items {
		if it.Quantity <= 0 {
			run.Fail("INVALID_QUANTITY")
			return nil, fmt.Errorf("%w: %q x%d", domain.ErrInvalidQuantity, it.ItemName, it.Quantity)
		}
	}

	var result *DeductionResult
	start := time.Now()
	err = c.repo.WithinTx(ctx, func(tx domain.Tx) error {
		result = &DeductionResult{OrderID: orderID}
		for _, it := range items {
			applied, err := c.deductLine(ctx, tx, it)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				result.Skipped = append(result.Skipped, it.ItemName)
				continue
			}
			result.Deductions = append(result.Deductions, applied...)
		}
		return nil
	})
	c.inst.External(peerInventory, "deduct_tx", start, err)
	if err != nil {
		run.Fail("DEDUCTION_ROLLED_BACK")
		return nil, fmt.Errorf("inventory: deduct for order %s: %w", orderID, err)
	}

	logger := run.Logger()
	for _, d := range result.Deductions {
		if d.Remaining.IsNegative() {
			logger.Warn("stock_below_zero",
				observability.F("inventory_item_id", d.InventoryItemID),
				observability.F("name", d.Name),
				observability.F("remaining", d.Remaining.String()),
			)
		}
	}
	run.With(
		observability.F("deductions", len(result.Deductions)),
		observability.F("skipped", len(result.Skipped)),
	)

	if c.publisher != nil {
		evt := domain.NewStockDeductedEvent(orderID, result.Deductions, result.Skipped)
		if perr := c.publisher.Publish(ctx, evt); perr != nil {
			logger.Warn("event_publish_failed",
				observability.F("event", evt.EventName()),
				observability.F("error", perr.Error()),
			)
		}
	}
	return result, nil
}

func (c *Coordinator) deductLine(ctx context.Context, tx domain.Tx, it domain.DeductionItem) ([]domain.Deduction, error) {
	qty := decimal.NewFromInt(int64(it.Quantity))

	if it.MenuItemID != "" {
		recipe, err := tx.Recipe(ctx, it.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", it.MenuItemID, err)
		}
		if len(recipe) > 0 {
			out := make([]domain.Deduction, 0, len(recipe))
			for _, line := range recipe {
				item, err := tx.Get(ctx, line.InventoryItemID)
				if err != nil {
					return nil, fmt.Errorf("ingredient %s: %w", line.InventoryItemID, err)
				}
				d, err := c.apply(ctx, tx, item, line.Quantity.Mul(qty), sourceRecipe)
				if err != nil {
					return nil, err
				}
				out = append(out, d)
			}
			return out, nil
		}
	}

	item, err := tx.FindByName(ctx, it.ItemName)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", it.ItemName, err)
	}
	d, err := c.apply(ctx, tx, item, qty, sourceDirect)
	if err != nil {
		return nil, err
	}
	return []domain.Deduction{d}, nil
}

func (c *Coordinator) apply(ctx context.Context, tx domain.Tx, item *domain.Item, amount decimal.Decimal, source string) (domain.Deduction, error) {
	if err := item.Deduct(amount, c.now()); err != nil {
		return domain.Deduction{}, fmt.Errorf("deduct %s: %w", item.ID, err)
	}
	if err := tx.Save(ctx, item); err != nil {
		return domain.Deduction{}, fmt.Errorf("save %s: %w", item.ID, err)
	}
	return domain.Deduction{
		InventoryItemID: item.ID,
		Name:            item.Name,
		Amount:          amount,
		Remaining:       item.Quantity,
		Source:          source,
	}, nil
}
