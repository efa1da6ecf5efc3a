package inventory

import (
	"context"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application"
	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
)

const workerService = "inventory-worker"

// CompletionHandler reacts to a completed order, e.g. the integration facade.
type CompletionHandler interface {
	OnOrderCompleted(ctx context.Context, evt domorder.OrderCompletedEvent) (*DeductionResult, error)
}

// Worker deducts stock when an order completes.
type Worker struct {
	subscriber domoutbox.Subscriber
	handler    CompletionHandler
	inst       application.Instruments
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	handler CompletionHandler,
	tel observability.Observability,
) *Worker {
	return &Worker{
		subscriber: subscriber,
		handler:    handler,
		inst:       application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.handler == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCompletedEvent{}.EventName(), w.handleOrderCompleted)
}

func (w *Worker) handleOrderCompleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCompletedEvent)
	if !ok {
		w.inst.Logger(ctx).Warn("event_ignored", observability.F("event", e.EventName()))
		return nil
	}
	_, err := w.handler.OnOrderCompleted(ctx, evt)
	return err
}

// CommandFromCompletedOrder maps the completed order's lines to deduction items.
func CommandFromCompletedOrder(evt domorder.OrderCompletedEvent) DeductCommand {
	items := make([]domain.DeductionItem, 0, len(evt.Lines))
	for _, l := range evt.Lines {
		items = append(items, domain.DeductionItem{MenuItemID: l.MenuItemID, ItemName: l.Name, Quantity: l.Quantity})
	}
	return DeductCommand{OrderID: evt.OrderID, Items: items}
}
