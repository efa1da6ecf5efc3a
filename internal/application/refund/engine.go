package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/hardware"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/monitoring"
	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	engineService     = "refund-engine"
	useCaseCreate     = "refund.create"
	useCaseApprove    = "refund.approve"
	useCaseReject     = "refund.reject"
	useCaseProcess    = "refund.process"
	peerRefundAPI     = "refund_api"
	OperationTimeout  = 30 * time.Second
	transactionPrefix = "RF-"
)

type IDGenerator interface {
	NewID() string
}

// Engine validates refund requests, applies the auto-approval rules and drives
// requests through pending, approved/rejected and completed.
type Engine struct {
	repo    domain.Repository
	logs    transaction.Appender
	alerts  monitoring.Alerter
	drawer  hardware.Drawer
	ids     IDGenerator
	policy  domain.Policy
	timeout time.Duration
	now     func() time.Time
	inst    application.Instruments
}

func NewEngine(
	repo domain.Repository,
	logs transaction.Appender,
	alerts monitoring.Alerter,
	drawer hardware.Drawer,
	ids IDGenerator,
	policy domain.Policy,
	tel observability.Observability,
) *Engine {
	return &Engine{
		repo:    repo,
		logs:    logs,
		alerts:  alerts,
		drawer:  drawer,
		ids:     ids,
		policy:  policy,
		timeout: OperationTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		inst:    application.NewInstruments(tel, engineService),
	}
}

func (e *Engine) Policy() domain.Policy { return e.policy }

func (e *Engine) Validate(in domain.Input) error {
	return domain.Validate(in, e.policy)
}

// Create validates and persists a pending request, then applies the auto-approval
// rules. Requests over the manager cap raise an escalation alert and stay pending.
func (e *Engine) Create(ctx context.Context, in domain.Input) (_ *domain.Request, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx, run := e.inst.Start(ctx, useCaseCreate, "CreateRefund",
		attribute.String("order.id", in.OrderID),
		attribute.String("refund.amount", in.RefundAmount.String()),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("order_id", in.OrderID),
		observability.F("refund_amount", in.RefundAmount.String()),
	)

	if err = e.Validate(in); err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}

	r := domain.New(e.ids.NewID(), in, e.now())
	if err = e.call(ctx, "create", func(ctx context.Context) error { return e.repo.Create(ctx, r) }); err != nil {
		run.Fail("PERSIST_FAILED")
		return nil, fmt.Errorf("refund: create: %w", err)
	}
	run.With(observability.F("refund_id", r.ID))

	d := domain.Dispose(r, e.policy)
	switch {
	case d.AutoApprove:
		// The request is already stored as pending; failures below return it so the
		// caller can approve it instead of creating a second one.
		pending := r.Clone()
		if err = r.Approve(domain.SystemApprover, d.Notes, e.now()); err != nil {
			run.Fail("AUTO_APPROVE_FAILED")
			return pending, err
		}
		if err = e.call(ctx, "update", func(ctx context.Context) error { return e.repo.Update(ctx, r) }); err != nil {
			run.Fail("PERSIST_FAILED")
			return pending, fmt.Errorf("refund: auto-approve %s: %w", r.ID, err)
		}
		run.With(observability.F("disposition", "auto_approved"))
	case d.Escalate:
		run.With(observability.F("disposition", "escalated"))
		e.alert(ctx, monitoring.Alert{
			Level:   monitoring.LevelWarning,
			Message: "refund requires escalation above manager limit",
			Context: refundContext(r),
		})
	default:
		run.With(observability.F("disposition", "manual_review"))
	}
	return r.Clone(), nil
}

func (e *Engine) Approve(ctx context.Context, id, approvedBy, notes string) (*domain.Request, error) {
	return e.transition(ctx, useCaseApprove, "ApproveRefund", id, func(r *domain.Request, now time.Time) error {
		return r.Approve(approvedBy, notes, now)
	})
}

func (e *Engine) Reject(ctx context.Context, id, rejectedBy, reason string) (*domain.Request, error) {
	return e.transition(ctx, useCaseReject, "RejectRefund", id, func(r *domain.Request, now time.Time) error {
		return r.Reject(rejectedBy, reason, now)
	})
}

// Process pays out an approved refund. Cash opens the drawer; other methods are not
// supported yet and fail before anything is paid. Every outcome is written to the
// transaction log.
func (e *Engine) Process(ctx context.Context, id string, method domain.Method, transactionID string) (_ *domain.Request, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx, run := e.inst.Start(ctx, useCaseProcess, "ProcessRefund",
		attribute.String("refund.id", id),
		attribute.String("refund.method", string(method)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("refund_id", id),
		observability.F("refund_method", string(method)),
	)

	r, err := e.get(ctx, id)
	if err != nil {
		run.Fail("REFUND_NOT_FOUND")
		return nil, err
	}
	if transactionID == "" {
		transactionID = transactionPrefix + e.ids.NewID()
	}

	next := r.Clone()
	if err = next.Complete(method, transactionID, e.now()); err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, err
	}

	if err = e.payOut(ctx, method); err != nil {
		run.Fail("PAYOUT_FAILED")
		e.record(ctx, r, method, transactionID, transaction.StatusFailed, err)
		e.alert(ctx, monitoring.Alert{
			Level:   monitoring.LevelError,
			Message: "refund processing failed",
			Context: withError(refundContext(r), err),
		})
		return nil, err
	}

	if err = e.call(ctx, "update", func(ctx context.Context) error { return e.repo.Update(ctx, next) }); err != nil {
		run.Fail("PERSIST_FAILED")
		err = fmt.Errorf("refund: complete %s: %w", id, err)
		e.record(ctx, r, method, transactionID, transaction.StatusFailed, err)
		return nil, err
	}

	e.record(ctx, next, method, transactionID, transaction.StatusSuccess, nil)
	e.alert(ctx, monitoring.Alert{
		Level:   monitoring.LevelInfo,
		Message: "refund processed",
		Context: refundContext(next),
	})
	run.With(observability.F("transaction_id", transactionID))
	return next.Clone(), nil
}

// CanApproveRefunds reports whether role may approve a refund of amount.
func (e *Engine) CanApproveRefunds(role domain.Role, amount decimal.Decimal) bool {
	return domain.CanApprove(role, amount, e.policy)
}

func (e *Engine) Get(ctx context.Context, id string) (*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.get(ctx, id)
}

func (e *Engine) List(ctx context.Context, f domain.Filter) ([]*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	var out []*domain.Request
	err := e.call(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = e.repo.List(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refund: list: %w", err)
	}
	return out, nil
}

func (e *Engine) transition(
	ctx context.Context,
	useCase, spanName, id string,
	apply func(r *domain.Request, now time.Time) error,
) (_ *domain.Request, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx, run := e.inst.Start(ctx, useCase, spanName, attribute.String("refund.id", id))
	defer func() { run.End(err) }()
	run.With(observability.F("refund_id", id))

	r, err := e.get(ctx, id)
	if err != nil {
		run.Fail("REFUND_NOT_FOUND")
		return nil, err
	}
	if err = apply(r, e.now()); err != nil {
		run.Fail(statusOf(err))
		return nil, err
	}
	if err = e.call(ctx, "update", func(ctx context.Context) error { return e.repo.Update(ctx, r) }); err != nil {
		run.Fail("PERSIST_FAILED")
		return nil, fmt.Errorf("refund: update %s: %w", id, err)
	}
	run.With(observability.F("refund_status", string(r.Status)))
	return r.Clone(), nil
}

func (e *Engine) get(ctx context.Context, id string) (*domain.Request, error) {
	var r *domain.Request
	err := e.call(ctx, "get", func(ctx context.Context) error {
		var err error
		r, err = e.repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) payOut(ctx context.Context, method domain.Method) error {
	switch method {
	case domain.MethodCash:
		if e.drawer == nil {
			return fmt.Errorf("refund: open drawer: %w", hardware.ErrNotConnected)
		}
		if err := e.drawer.Open(ctx); err != nil {
			return fmt.Errorf("refund: open drawer: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedMethod, method)
	}
}

func (e *Engine) call(ctx context.Context, endpoint string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	e.inst.External(peerRefundAPI, endpoint, start, err)
	return err
}

func (e *Engine) record(ctx context.Context, r *domain.Request, method domain.Method, transactionID string, status transaction.Status, cause error) {
	if e.logs == nil {
		return
	}
	meta := map[string]any{
		"refundId":      r.ID,
		"refundMethod":  string(method),
		"transactionId": transactionID,
		"reason":        r.Reason,
	}
	if cause != nil {
		meta["error"] = cause.Error()
	}
	l := transaction.Log{
		ID:            e.ids.NewID(),
		Type:          transaction.TypeRefund,
		OrderID:       r.OrderID,
		Amount:        r.RefundAmount,
		Status:        status,
		Timestamp:     e.now(),
		Metadata:      meta,
		PaymentMethod: r.PaymentMethod,
	}
	if err := e.logs.Append(ctx, l); err != nil {
		e.inst.Logger(ctx).Error("transaction_log_append_failed",
			observability.F("refund_id", r.ID),
			observability.F("error", err.Error()),
		)
	}
}

func (e *Engine) alert(ctx context.Context, a monitoring.Alert) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Alert(ctx, a); err != nil {
		e.inst.Logger(ctx).Warn("monitoring_alert_failed",
			observability.F("message", a.Message),
			observability.F("error", err.Error()),
		)
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION_FAILED"
	}
	return "TRANSITION_FAILED"
}

func refundContext(r *domain.Request) map[string]any {
	return map[string]any{
		"refundId":     r.ID,
		"orderId":      r.OrderID,
		"orderNumber":  r.OrderNumber,
		"refundAmount": r.RefundAmount.String(),
		"authorizedBy": r.AuthorizedBy,
	}
}

func withError(ctx map[string]any, err error) map[string]any {
	ctx["error"] = err.Error()
	return ctx
}
