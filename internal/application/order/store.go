package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application"
	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	storeService             = "order-store"
	useCaseAddOrder          = "order.add"
	useCaseUpdateItemStatus  = "order.update_item_status"
	useCaseUpdateOrderStatus = "order.update_status"
	useCaseReload            = "order.reload"
	peerOrderAPI             = "order_api"
	publishTimeout           = 300 * time.Millisecond

	// TempIDPrefix marks orders the system of record has not acknowledged yet.
	TempIDPrefix = "temp-"
)

var (
	ErrNotFound = domain.ErrNotFound
	// ErrSyncFailed means the system of record rejected a change; the local
	// projection was reloaded and the change reverted.
	ErrSyncFailed = errors.New("order: sync failed, changes reverted")
)

type IDGenerator interface {
	NewID() string
}

// ClientGroup is the orders of one table (dine-in) or one customer.
type ClientGroup struct {
	Key    string
	Orders []*domain.Order
}

// Store is the session-local projection of kitchen orders. It applies mutations
// optimistically and reconciles with the order persistence API; the API stays the
// system of record. The projection is only mutated through Store methods.
type Store struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	sequence  []string
	unsynced  map[string]bool
	completed map[string]bool

	api       domain.API
	archive   sales.Archive
	publisher domoutbox.Publisher
	tempIDs   IDGenerator
	now       func() time.Time
	inst      application.Instruments

	background sync.WaitGroup
}

func NewStore(
	api domain.API,
	archive sales.Archive,
	publisher domoutbox.Publisher,
	tempIDs IDGenerator,
	tel observability.Observability,
) *Store {
	return &Store{
		orders:    make(map[string]*domain.Order),
		unsynced:  make(map[string]bool),
		completed: make(map[string]bool),
		api:       api,
		archive:   archive,
		publisher: publisher,
		tempIDs:   tempIDs,
		now:       func() time.Time { return time.Now().UTC() },
		inst:      application.NewInstruments(tel, storeService),
	}
}

// Load replaces the projection with the order collection from the system of record.
// Orders still waiting for their create call to succeed are kept.
func (s *Store) Load(ctx context.Context) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseReload, "ReloadOrders")
	defer func() { run.End(err) }()

	start := time.Now()
	list, err := s.api.List(ctx)
	s.inst.External(peerOrderAPI, "list", start, err)
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return fmt.Errorf("order: list: %w", err)
	}

	s.mu.Lock()
	orders := make(map[string]*domain.Order, len(list))
	sequence := make([]string, 0, len(list))
	for _, o := range list {
		if o == nil || orders[o.ID] != nil {
			continue
		}
		orders[o.ID] = o.Clone()
		sequence = append(sequence, o.ID)
		if o.Status == domain.StatusCompleted {
			s.completed[o.ID] = true
		}
	}
	for _, id := range s.sequence {
		if s.unsynced[id] && orders[id] == nil {
			orders[id] = s.orders[id]
			sequence = append(sequence, id)
		}
	}
	s.orders, s.sequence = orders, sequence
	s.mu.Unlock()

	run.With(observability.F("orders", len(sequence)))
	s.publish(ctx, domain.OrderUpdatedEvent{Reason: "reloaded", OccurredAt: s.now()})
	return nil
}

// Orders returns copies of the projected orders in insertion order.
func (s *Store) Orders() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(s.sequence))
	for _, id := range s.sequence {
		out = append(out, s.orders[id].Clone())
	}
	return out
}

func (s *Store) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

// AddOrder inserts the draft under a temporary id and creates it remotely. On success
// the temporary id is replaced by the server id. On failure the order stays visible
// under the temporary id and the error is returned alongside it.
func (s *Store) AddOrder(ctx context.Context, draft domain.Draft) (_ *domain.Order, err error) {
	ctx, run := s.inst.Start(ctx, useCaseAddOrder, "AddOrder",
		attribute.String("order.number", draft.OrderNumber),
	)
	defer func() { run.End(err) }()

	tempID := TempIDPrefix + s.tempIDs.NewID()
	local, err := domain.New(tempID, draft, s.now())
	if err != nil {
		run.Fail("ORDER_INVALID")
		return nil, err
	}
	run.With(observability.F("temp_id", tempID))

	s.mu.Lock()
	s.orders[tempID] = local
	s.sequence = append(s.sequence, tempID)
	s.unsynced[tempID] = true
	s.mu.Unlock()
	s.publish(ctx, domain.NewOrderUpdatedEvent(local, "created"))

	start := time.Now()
	created, err := s.api.Create(ctx, draft)
	s.inst.External(peerOrderAPI, "create", start, err)
	if err != nil {
		run.Fail("ORDER_CREATE_FAILED")
		return local.Clone(), fmt.Errorf("order: create: %w", err)
	}

	s.mu.Lock()
	delete(s.orders, tempID)
	delete(s.unsynced, tempID)
	if _, loaded := s.orders[created.ID]; loaded {
		// A reload during the create call already brought in the server copy.
		s.sequence = slices.DeleteFunc(s.sequence, func(id string) bool { return id == tempID })
	} else {
		s.orders[created.ID] = created.Clone()
		for i, id := range s.sequence {
			if id == tempID {
				s.sequence[i] = created.ID
				break
			}
		}
	}
	s.mu.Unlock()

	run.With(observability.F("order_id", created.ID))
	s.publish(ctx, domain.NewOrderUpdatedEvent(created, "synced"))
	return created.Clone(), nil
}

// UpdateItemStatus changes an item's status immediately, re-derives the order status and
// confirms the change remotely. When confirmation fails the whole projection is reloaded
// from the system of record and ErrSyncFailed is returned.
func (s *Store) UpdateItemStatus(ctx context.Context, orderID, itemID string, status domain.ItemStatus) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseUpdateItemStatus, "UpdateItemStatus",
		attribute.String("order.id", orderID),
		attribute.String("item.id", itemID),
		attribute.String("item.status", string(status)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("order_id", orderID),
		observability.F("item_id", itemID),
		observability.F("item_status", string(status)),
	)

	if !status.Valid() {
		run.Fail("INVALID_STATUS")
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		run.Fail("ORDER_NOT_FOUND")
		return ErrNotFound
	}
	prev := o.Clone()
	prevOrderStatus := o.Status
	prevItemStatus, err := o.SetItemStatus(itemID, status, s.now())
	if err != nil {
		s.mu.Unlock()
		run.Fail("ITEM_UPDATE_REJECTED")
		return err
	}
	snapshot := o.Clone()
	s.mu.Unlock()

	s.publish(ctx, domain.NewOrderUpdatedEvent(snapshot, "item_status"))
	if status.Alerting() && prevItemStatus != status {
		idx, _ := snapshot.Item(itemID)
		s.publish(ctx, domain.NewItemReadyEvent(snapshot, snapshot.Items[idx]))
	}

	start := time.Now()
	err = s.api.PatchItemStatus(ctx, orderID, itemID, status)
	if err == nil && snapshot.Status != prevOrderStatus {
		err = s.api.PatchStatus(ctx, orderID, snapshot.Status)
	}
	s.inst.External(peerOrderAPI, "patch_item_status", start, err)
	if err != nil {
		run.Fail("SYNC_FAILED")
		return s.revert(ctx, prev, err)
	}

	run.With(observability.F("order_status", string(snapshot.Status)))
	if snapshot.Status == domain.StatusCompleted {
		s.onCompleted(ctx, snapshot)
	}
	return nil
}

// UpdateOrderStatus overrides the derived status, e.g. manual completion.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status domain.Status) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseUpdateOrderStatus, "UpdateOrderStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("order_id", orderID),
		observability.F("order_status", string(status)),
	)

	if !status.Valid() {
		run.Fail("INVALID_STATUS")
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		run.Fail("ORDER_NOT_FOUND")
		return ErrNotFound
	}
	prev := o.Clone()
	_ = o.SetStatus(status, s.now())
	snapshot := o.Clone()
	s.mu.Unlock()

	s.publish(ctx, domain.NewOrderUpdatedEvent(snapshot, "status"))

	start := time.Now()
	err = s.api.PatchStatus(ctx, orderID, status)
	s.inst.External(peerOrderAPI, "patch_status", start, err)
	if err != nil {
		run.Fail("SYNC_FAILED")
		return s.revert(ctx, prev, err)
	}

	if status == domain.StatusCompleted {
		s.onCompleted(ctx, snapshot)
	}
	return nil
}

// UpdateOrderPriority applies the priority locally and syncs it in the background.
// Sync failures are logged and not rolled back.
func (s *Store) UpdateOrderPriority(ctx context.Context, orderID string, priority domain.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPriority, priority)
	}
	snapshot, err := s.mutate(orderID, func(o *domain.Order) { _ = o.SetPriority(priority, s.now()) })
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewOrderUpdatedEvent(snapshot, "priority"))
	s.fireAndForget(ctx, "patch_priority", orderID, func(ctx context.Context) error {
		return s.api.PatchPriority(ctx, orderID, priority)
	})
	return nil
}

// UpdateOrderNotes applies chef notes locally and syncs them in the background.
func (s *Store) UpdateOrderNotes(ctx context.Context, orderID, notes string) error {
	snapshot, err := s.mutate(orderID, func(o *domain.Order) { o.SetNotes(notes, s.now()) })
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewOrderUpdatedEvent(snapshot, "notes"))
	s.fireAndForget(ctx, "patch_notes", orderID, func(ctx context.Context) error {
		return s.api.PatchNotes(ctx, orderID, notes)
	})
	return nil
}

// Flush waits for background field syncs started by UpdateOrderPriority/UpdateOrderNotes.
func (s *Store) Flush() {
	s.background.Wait()
}

// OrdersByClient groups orders by table (dine-in) or customer name, keeping
// groups and the orders inside them in first-seen order.
func (s *Store) OrdersByClient() []ClientGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	groups := make([]ClientGroup, 0)
	for _, id := range s.sequence {
		o := s.orders[id]
		key := o.ClientKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ClientGroup{Key: key})
		}
		groups[i].Orders = append(groups[i].Orders, o.Clone())
	}
	return groups
}

// Synced reports whether the order has been acknowledged by the system of record.
func (s *Store) Synced(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.unsynced[id] && !strings.HasPrefix(id, TempIDPrefix)
}

func (s *Store) mutate(orderID string, fn func(o *domain.Order)) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	fn(o)
	return o.Clone(), nil
}

func (s *Store) fireAndForget(ctx context.Context, endpoint, orderID string, call func(context.Context) error) {
	logger := s.inst.Logger(ctx)
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		start := time.Now()
		err := call(ctx)
		s.inst.External(peerOrderAPI, endpoint, start, err)
		if err != nil {
			logger.Warn("order_field_sync_failed",
				observability.F("endpoint", endpoint),
				observability.F("order_id", orderID),
				observability.F("error", err.Error()),
			)
		}
	}()
}

// revert discards optimistic changes by reloading everything from the system of record.
// An order the reload cannot supply (unsynced, or the reload failed) is restored
// from prev, its state before the rejected change.
func (s *Store) revert(ctx context.Context, prev *domain.Order, cause error) error {
	loadErr := s.Load(ctx)
	if loadErr != nil {
		s.inst.Logger(ctx).Error("order_revert_reload_failed",
			observability.F("error", loadErr.Error()),
		)
	}

	s.mu.Lock()
	if _, ok := s.orders[prev.ID]; ok && (loadErr != nil || s.unsynced[prev.ID]) {
		s.orders[prev.ID] = prev
	}
	s.mu.Unlock()

	return fmt.Errorf("%w: %w", ErrSyncFailed, cause)
}

// onCompleted archives the order to sales history once per order number and emits
// the completion event the first time this store sees the order complete.
func (s *Store) onCompleted(ctx context.Context, o *domain.Order) {
	logger := s.inst.Logger(ctx).With(
		observability.F("order_id", o.ID),
		observability.F("order_number", o.OrderNumber),
	)

	s.mu.Lock()
	first := !s.completed[o.ID]
	s.completed[o.ID] = true
	s.mu.Unlock()

	if s.archive != nil {
		if _, err := sales.ArchiveOnce(ctx, s.archive, SalesRecord(o)); err != nil {
			logger.Error("order_archive_failed", observability.F("error", err.Error()))
		}
	}
	if first {
		s.publish(ctx, domain.NewOrderCompletedEvent(o))
	}
}

// SalesRecord summarizes a completed order for sales history.
func SalesRecord(o *domain.Order) sales.Record {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	return sales.Record{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		ItemCount:     items,
		CompletedAt:   time.Now().UTC(),
	}
}

func (s *Store) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		s.inst.Logger(ctx).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
