package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seq struct{ n atomic.Int64 }

func (s *seq) NewID() string { return fmt.Sprintf("id-%d", s.n.Add(1)) }

func TestOrderAPILastWriteWins(t *testing.T) {
	ctx := context.Background()
	api := NewOrderAPI(&seq{})
	o, err := api.Create(ctx, order.Draft{
		OrderNumber: "A-1",
		Items:       []order.Item{{ID: "i1", Name: "Soup", Quantity: 1, Price: decimal.NewFromInt(5), Category: order.CategoryAppetizer}},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", o.ID)

	require.NoError(t, api.PatchItemStatus(ctx, o.ID, "i1", order.ItemReady))
	require.NoError(t, api.PatchItemStatus(ctx, o.ID, "i1", order.ItemPreparing))
	require.NoError(t, api.PatchPriority(ctx, o.ID, order.PriorityHigh))
	require.NoError(t, api.PatchNotes(ctx, o.ID, "extra hot"))

	list, err := api.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ItemPreparing, list[0].Items[0].Status)
	assert.Equal(t, order.PriorityHigh, list[0].Priority)
	assert.Equal(t, "extra hot", list[0].ChefNotes)

	assert.ErrorIs(t, api.PatchStatus(ctx, "missing", order.StatusReady), order.ErrNotFound)
	assert.ErrorIs(t, api.PatchItemStatus(ctx, o.ID, "nope", order.ItemReady), order.ErrNotFound)
	assert.ErrorIs(t, api.PatchPriority(ctx, o.ID, order.Priority("asap")), order.ErrInvalidPriority)
}

func TestInventoryRepositoryRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	repo.PutItem(inventory.Item{ID: "flour", Name: "Flour", Quantity: decimal.NewFromInt(10)})

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx inventory.Tx) error {
		it, err := tx.Get(ctx, "flour")
		require.NoError(t, err)
		require.NoError(t, it.Deduct(decimal.NewFromInt(4), time.Now()))
		require.NoError(t, tx.Save(ctx, it))
		return boom
	})
	require.ErrorIs(t, err, boom)
	it, _ := repo.Item("flour")
	assert.True(t, decimal.NewFromInt(10).Equal(it.Quantity))

	err = repo.WithinTx(ctx, func(tx inventory.Tx) error {
		it, err := tx.FindByName(ctx, "FLOUR")
		if err != nil {
			return err
		}
		if err := it.Deduct(decimal.NewFromInt(4), time.Now()); err != nil {
			return err
		}
		return tx.Save(ctx, it)
	})
	require.NoError(t, err)
	it, _ = repo.Item("flour")
	assert.True(t, decimal.NewFromInt(6).Equal(it.Quantity))
}

func TestRefundRepositoryListFiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRefundRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, orderID := range []string{"o-1", "o-2", "o-1"} {
		r := refund.New(fmt.Sprintf("rf-%d", i), refund.Input{OrderID: orderID}, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, r))
	}

	list, err := repo.List(ctx, refund.Filter{OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "rf-2", list[0].ID)
	assert.Equal(t, "rf-0", list[1].ID)

	r, err := repo.Get(ctx, "rf-1")
	require.NoError(t, err)
	r.Status = refund.StatusRejected
	stored, _ := repo.Get(ctx, "rf-1")
	assert.Equal(t, refund.StatusPending, stored.Status, "reads are copies")

	require.NoError(t, repo.Update(ctx, r))
	list, err = repo.List(ctx, refund.Filter{Status: refund.StatusRejected})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.Update(ctx, &refund.Request{ID: "missing"}), refund.ErrNotFound)
}

func TestSalesArchiveOnce(t *testing.T) {
	ctx := context.Background()
	a := NewSalesArchive()

	inserted, err := sales.ArchiveOnce(ctx, a, sales.Record{OrderNumber: "A-1"})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = sales.ArchiveOnce(ctx, a, sales.Record{OrderNumber: "A-1"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Len(t, a.Records(), 1)
}
