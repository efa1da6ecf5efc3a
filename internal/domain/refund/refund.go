package refund

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("refund: not found")
	ErrValidation        = errors.New("refund: validation failed")
	ErrInvalidTransition = errors.New("refund: invalid state transition")
	ErrUnsupportedMethod = errors.New("refund: unsupported refund method")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

const (
	NoteAutoApprovedSmallAmount    = "Auto-approved (Small Amount)"
	NoteAutoApprovedBelowThreshold = "Auto-approved (Below Threshold)"

	// AuthorizedByManager is the authorizer value subject to the manager refund cap.
	AuthorizedByManager = "Restaurant Manager"
	// SystemApprover is recorded as approver for auto-approved requests.
	SystemApprover = "system"
)

type Request struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	CustomerName   string          `json:"customerName"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	RefundAmount   decimal.Decimal `json:"refundAmount"`
	PaymentMethod  string          `json:"paymentMethod"`
	Reason         string          `json:"reason"`
	AuthorizedBy   string          `json:"authorizedBy"`
	RequestedBy    string          `json:"requestedBy"`
	Status         Status          `json:"status"`
	RequestedAt    time.Time       `json:"requestedAt"`
	ApprovedBy     string          `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time      `json:"approvedAt,omitempty"`
	RejectedBy     string          `json:"rejectedBy,omitempty"`
	RejectedAt     *time.Time      `json:"rejectedAt,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	RefundMethod   Method          `json:"refundMethod,omitempty"`
	TransactionID  string          `json:"transactionId,omitempty"`
}

// Input is the data a cashier submits to open a refund request.
type Input struct {
	OrderID        string
	OrderNumber    string
	CustomerName   string
	OriginalAmount decimal.Decimal
	RefundAmount   decimal.Decimal
	PaymentMethod  string
	Reason         string
	AuthorizedBy   string
	RequestedBy    string
}

func New(id string, in Input, now time.Time) *Request {
	return &Request{
		ID:             id,
		OrderID:        in.OrderID,
		OrderNumber:    in.OrderNumber,
		CustomerName:   in.CustomerName,
		OriginalAmount: in.OriginalAmount,
		RefundAmount:   in.RefundAmount,
		PaymentMethod:  in.PaymentMethod,
		Reason:         in.Reason,
		AuthorizedBy:   in.AuthorizedBy,
		RequestedBy:    in.RequestedBy,
		Status:         StatusPending,
		RequestedAt:    now,
	}
}

func (r *Request) Approve(by, notes string, now time.Time) error {
	if r.Status != StatusPending {
		return transitionError(r.Status, StatusApproved)
	}
	r.Status = StatusApproved
	r.ApprovedBy = by
	r.ApprovedAt = &now
	r.Notes = notes
	return nil
}

func (r *Request) Reject(by, reason string, now time.Time) error {
	if r.Status != StatusPending {
		return transitionError(r.Status, StatusRejected)
	}
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	r.Status = StatusRejected
	r.RejectedBy = by
	r.RejectedAt = &now
	r.Notes = reason
	return nil
}

func (r *Request) Complete(method Method, transactionID string, now time.Time) error {
	if r.Status != StatusApproved {
		return transitionError(r.Status, StatusCompleted)
	}
	r.Status = StatusCompleted
	r.RefundMethod = method
	r.TransactionID = transactionID
	r.CompletedAt = &now
	return nil
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.ApprovedAt != nil {
		v := *r.ApprovedAt
		c.ApprovedAt = &v
	}
	if r.RejectedAt != nil {
		v := *r.RejectedAt
		c.RejectedAt = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
