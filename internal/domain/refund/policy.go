package refund

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the restaurant's refund configuration.
type Policy struct {
	Enabled                 bool
	MaxManagerRefund        decimal.Decimal
	RequireApproval         bool
	ApprovalThreshold       decimal.Decimal
	AllowedPaymentMethods   []string
	AutoApproveSmallAmounts bool
	SmallAmountThreshold    decimal.Decimal
	// TimeLimit bounds how long after payment a refund may be requested.
	TimeLimit time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Enabled:                 true,
		MaxManagerRefund:        decimal.NewFromInt(200),
		RequireApproval:         true,
		ApprovalThreshold:       decimal.NewFromInt(100),
		AllowedPaymentMethods:   []string{string(MethodCash), string(MethodCard)},
		AutoApproveSmallAmounts: true,
		SmallAmountThreshold:    decimal.NewFromInt(50),
		TimeLimit:               24 * time.Hour,
	}
}

// WithinTimeLimit reports whether an order paid at paidAt may still be refunded at now.
// A zero TimeLimit disables the check.
func (p Policy) WithinTimeLimit(paidAt, now time.Time) bool {
	if p.TimeLimit <= 0 {
		return true
	}
	return !now.After(paidAt.Add(p.TimeLimit))
}

// Validate checks a refund input against the policy.
func Validate(in Input, p Policy) error {
	if !p.Enabled {
		return invalid("refunds are disabled")
	}
	switch {
	case in.OrderID == "":
		return invalid("order id is required")
	case in.Reason == "":
		return invalid("reason is required")
	case in.AuthorizedBy == "":
		return invalid("authorizer is required")
	}
	if !in.RefundAmount.IsPositive() {
		return invalid("refund amount must be greater than zero")
	}
	if in.RefundAmount.GreaterThan(in.OriginalAmount) {
		return invalid(fmt.Sprintf("refund amount %s exceeds original amount %s", in.RefundAmount, in.OriginalAmount))
	}
	if !slices.Contains(p.AllowedPaymentMethods, in.PaymentMethod) {
		return invalid(fmt.Sprintf("payment method %q is not refundable", in.PaymentMethod))
	}
	return nil
}

// Disposition is the outcome of evaluating a new request against auto-approval rules.
type Disposition struct {
	AutoApprove bool
	Escalate    bool
	Notes       string
}

// Dispose applies the auto-approval rules in order:
// small amount, manager cap, approval threshold, manual review.
// The small-amount rule is evaluated before the manager cap.
func Dispose(r *Request, p Policy) Disposition {
	switch {
	case p.AutoApproveSmallAmounts && r.RefundAmount.LessThanOrEqual(p.SmallAmountThreshold):
		return Disposition{AutoApprove: true, Notes: NoteAutoApprovedSmallAmount}
	case r.AuthorizedBy == AuthorizedByManager && r.RefundAmount.GreaterThan(p.MaxManagerRefund):
		return Disposition{Escalate: true}
	case !p.RequireApproval || r.RefundAmount.LessThanOrEqual(p.ApprovalThreshold):
		return Disposition{AutoApprove: true, Notes: NoteAutoApprovedBelowThreshold}
	}
	return Disposition{}
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

// CanApprove reports whether a user with role may approve a refund of amount.
func CanApprove(role Role, amount decimal.Decimal, p Policy) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return amount.LessThanOrEqual(p.MaxManagerRefund)
	}
	return false
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
