package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application"
	appinventory "github.com/Zhima-Mochi/kitchen-ops/internal/application/inventory"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/hardware"
	domorder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	facadeService          = "integration-facade"
	useCaseCompletePayment = "payment.complete"

	StepDrawer  = "cash_drawer"
	StepReceipt = "receipt"
	StepEvent   = "payment_event"
	StepArchive = "sales_archive"
)

var ErrPaymentNotRecorded = errors.New("integration: payment not recorded")

type IDGenerator interface {
	NewID() string
}

type RefundProcessor interface {
	Process(ctx context.Context, id string, method refund.Method, transactionID string) (*refund.Request, error)
}

type Deductor = application.UseCase[appinventory.DeductCommand, *appinventory.DeductionResult]

// Devices are the peripherals at the point of sale. Any of them may be nil.
type Devices struct {
	Drawer  hardware.Drawer
	Printer hardware.Printer
	Scanner hardware.Scanner
}

func (d Devices) all() []hardware.Device {
	var out []hardware.Device
	if d.Drawer != nil {
		out = append(out, d.Drawer)
	}
	if d.Printer != nil {
		out = append(out, d.Printer)
	}
	if d.Scanner != nil {
		out = append(out, d.Scanner)
	}
	return out
}

type Options struct {
	PrintReceipts bool
}

// PaymentCompletion is a settled payment for one order.
type PaymentCompletion struct {
	OrderID     string
	OrderNumber string
	Amount      decimal.Decimal
	Method      payment.Method
	CustomerID  string
	Lines       []hardware.ReceiptLine
}

// CompletionFromOrder builds the completion of paying order o in full with method.
func CompletionFromOrder(o *domorder.Order, method payment.Method) PaymentCompletion {
	lines := make([]hardware.ReceiptLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, hardware.ReceiptLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			Amount:   it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return PaymentCompletion{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.Total,
		Method:      method,
		CustomerID:  o.CustomerName,
		Lines:       lines,
	}
}

type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// PaymentOutcome separates "the payment is recorded" from "every side effect ran".
type PaymentOutcome struct {
	TransactionID        string        `json:"transactionId"`
	PaymentRecorded      bool          `json:"paymentRecorded"`
	SideEffectsCompleted bool          `json:"sideEffectsCompleted"`
	Failures             []StepFailure `json:"failures,omitempty"`
}

// Facade sequences the side effects around payments, refunds and completed orders.
type Facade struct {
	logs      transaction.Appender
	publisher domoutbox.Publisher
	archive   sales.Archive
	refunds   RefundProcessor
	deductor  Deductor
	devices   Devices
	ids       IDGenerator
	opts      Options
	now       func() time.Time
	inst      application.Instruments
}

func NewFacade(
	logs transaction.Appender,
	publisher domoutbox.Publisher,
	archive sales.Archive,
	refunds RefundProcessor,
	deductor Deductor,
	devices Devices,
	ids IDGenerator,
	opts Options,
	tel observability.Observability,
) *Facade {
	return &Facade{
		logs:      logs,
		publisher: publisher,
		archive:   archive,
		refunds:   refunds,
		deductor:  deductor,
		devices:   devices,
		ids:       ids,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		inst:      application.NewInstruments(tel, facadeService),
	}
}

// CompletePayment records the payment, then runs drawer, receipt, event and archive
// steps. A failing step is logged as a failed transaction and an integration error
// event but never fails the recorded payment; it shows up in Failures instead.
func (f *Facade) CompletePayment(ctx context.Context, p PaymentCompletion) (_ *PaymentOutcome, err error) {
	ctx, run := f.inst.Start(ctx, useCaseCompletePayment, "CompletePayment",
		attribute.String("order.id", p.OrderID),
		attribute.String("payment.method", string(p.Method)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("order_id", p.OrderID),
		observability.F("payment_method", string(p.Method)),
		observability.F("amount", p.Amount.String()),
	)

	out := &PaymentOutcome{TransactionID: f.ids.NewID()}
	err = f.logs.Append(ctx, transaction.Log{
		ID:            out.TransactionID,
		Type:          transaction.TypePayment,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Status:        transaction.StatusSuccess,
		Timestamp:     f.now(),
		Metadata:      map[string]any{"orderNumber": p.OrderNumber},
		PaymentMethod: string(p.Method),
		CustomerID:    p.CustomerID,
	})
	if err != nil {
		run.Fail("PAYMENT_NOT_RECORDED")
		return out, fmt.Errorf("%w: %w", ErrPaymentNotRecorded, err)
	}
	out.PaymentRecorded = true

	steps := []struct {
		name string
		skip bool
		run  func(context.Context) error
	}{
		{StepDrawer, !p.Method.OpensDrawer(), f.openDrawer},
		{StepReceipt, !f.opts.PrintReceipts, func(ctx context.Context) error { return f.printReceipt(ctx, p) }},
		{StepEvent, f.publisher == nil, func(ctx context.Context) error {
			return f.publisher.Publish(ctx, payment.ProcessedEvent{
				OrderID:     p.OrderID,
				OrderNumber: p.OrderNumber,
				Amount:      p.Amount,
				Method:      p.Method,
				OccurredAt:  f.now(),
			})
		}},
		{StepArchive, f.archive == nil, func(ctx context.Context) error {
			_, err := sales.ArchiveOnce(ctx, f.archive, sales.Record{
				OrderID:       p.OrderID,
				OrderNumber:   p.OrderNumber,
				Total:         p.Amount,
				PaymentMethod: string(p.Method),
				ItemCount:     itemCount(p.Lines),
				CompletedAt:   f.now(),
			})
			return err
		}},
	}
	for _, s := range steps {
		if s.skip {
			continue
		}
		if serr := s.run(ctx); serr != nil {
			out.Failures = append(out.Failures, StepFailure{Step: s.name, Error: serr.Error()})
			f.sideEffectFailed(ctx, p, s.name, serr)
		}
	}

	out.SideEffectsCompleted = len(out.Failures) == 0
	if !out.SideEffectsCompleted {
		run.Fail("SIDE_EFFECTS_INCOMPLETE")
	}
	run.With(
		observability.F("transaction_id", out.TransactionID),
		observability.F("failed_steps", len(out.Failures)),
	)
	return out, nil
}

// ProcessRefund pays out an approved refund through the refund engine.
func (f *Facade) ProcessRefund(ctx context.Context, id string, method refund.Method, transactionID string) (*refund.Request, error) {
	if f.refunds == nil {
		return nil, fmt.Errorf("%w: no refund processor", refund.ErrUnsupportedMethod)
	}
	return f.refunds.Process(ctx, id, method, transactionID)
}

var _ appinventory.CompletionHandler = (*Facade)(nil)

// OnOrderCompleted deducts the completed order's stock. The inventory worker calls
// it for every order.completed event.
func (f *Facade) OnOrderCompleted(ctx context.Context, evt domorder.OrderCompletedEvent) (*appinventory.DeductionResult, error) {
	if f.deductor == nil {
		return &appinventory.DeductionResult{OrderID: evt.OrderID}, nil
	}
	return f.deductor.Execute(ctx, appinventory.CommandFromCompletedOrder(evt))
}

// DeviceStatus reports the current state of every configured peripheral.
func (f *Facade) DeviceStatus() []hardware.Status {
	devices := f.devices.all()
	out := make([]hardware.Status, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Status())
	}
	return out
}

// ConnectDevices connects every peripheral; failures are logged and the device stays disconnected.
func (f *Facade) ConnectDevices(ctx context.Context) {
	for _, d := range f.devices.all() {
		if err := d.Connect(ctx); err != nil {
			f.inst.Logger(ctx).Warn("device_connect_failed",
				observability.F("device", d.Name()),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (f *Facade) openDrawer(ctx context.Context) error {
	if f.devices.Drawer == nil {
		return hardware.ErrNotConnected
	}
	return f.devices.Drawer.Open(ctx)
}

func (f *Facade) printReceipt(ctx context.Context, p PaymentCompletion) error {
	if f.devices.Printer == nil {
		return hardware.ErrNotConnected
	}
	return f.devices.Printer.Print(ctx, hardware.Receipt{
		OrderNumber:   p.OrderNumber,
		Lines:         p.Lines,
		Total:         p.Amount,
		PaymentMethod: string(p.Method),
		IssuedAt:      f.now(),
	})
}

func (f *Facade) sideEffectFailed(ctx context.Context, p PaymentCompletion, step string, cause error) {
	logger := f.inst.Logger(ctx).With(
		observability.F("order_id", p.OrderID),
		observability.F("step", step),
	)
	logger.Warn("payment_side_effect_failed", observability.F("error", cause.Error()))

	err := f.logs.Append(ctx, transaction.Log{
		ID:            f.ids.NewID(),
		Type:          transaction.TypePayment,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Status:        transaction.StatusFailed,
		Timestamp:     f.now(),
		Metadata:      map[string]any{"orderNumber": p.OrderNumber, "step": step, "error": cause.Error()},
		PaymentMethod: string(p.Method),
		CustomerID:    p.CustomerID,
	})
	if err != nil {
		logger.Error("transaction_log_append_failed", observability.F("error", err.Error()))
	}

	if f.publisher != nil {
		evt := payment.IntegrationErrorEvent{OrderID: p.OrderID, Step: step, Error: cause.Error(), OccurredAt: f.now()}
		if err := f.publisher.Publish(ctx, evt); err != nil {
			logger.Warn("event_publish_failed",
				observability.F("event", evt.EventName()),
				observability.F("error", err.Error()),
			)
		}
	}
}

func itemCount(lines []hardware.ReceiptLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
