package httppresentation

import (
	"errors"
	"net/http"

	domainRefund "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"

	"github.com/shopspring/decimal"
)

type createRefundRequest struct {
	OrderID        string          `json:"orderId" validate:"required"`
	OrderNumber    string          `json:"orderNumber"`
	CustomerName   string          `json:"customerName"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	RefundAmount   decimal.Decimal `json:"refundAmount"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required"`
	Reason         string          `json:"reason" validate:"required"`
	AuthorizedBy   string          `json:"authorizedBy" validate:"required"`
	RequestedBy    string          `json:"requestedBy"`
}

type approveRefundRequest struct {
	ApprovedBy string `json:"approvedBy" validate:"required"`
	Notes      string `json:"notes"`
}

type rejectRefundRequest struct {
	RejectedBy string `json:"rejectedBy" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

type processRefundRequest struct {
	Method        string `json:"method" validate:"required"`
	TransactionID string `json:"transactionId"`
}

type authorizationResponse struct {
	Role       string          `json:"role"`
	Amount     decimal.Decimal `json:"amount"`
	CanApprove bool            `json:"canApprove"`
}

// pendingRefundResponse is returned when the request is stored as pending but its
// auto-approval could not be saved.
type pendingRefundResponse struct {
	Refund *domainRefund.Request `json:"refund"`
	Error  string                `json:"error"`
}

var errBadQuery = errors.New("invalid query parameter")

func (h *Handler) handleListRefunds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.deps.Refunds.List(r.Context(), domainRefund.Filter{
		OrderID: q.Get("orderId"),
		Status:  domainRefund.Status(q.Get("status")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateRefund(w http.ResponseWriter, r *http.Request) {
	var req createRefundRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.deps.Refunds.Create(r.Context(), domainRefund.Input{
		OrderID:        req.OrderID,
		OrderNumber:    req.OrderNumber,
		CustomerName:   req.CustomerName,
		OriginalAmount: req.OriginalAmount,
		RefundAmount:   req.RefundAmount,
		PaymentMethod:  req.PaymentMethod,
		Reason:         req.Reason,
		AuthorizedBy:   req.AuthorizedBy,
		RequestedBy:    req.RequestedBy,
	})
	if err != nil {
		if created != nil {
			writeJSON(w, http.StatusAccepted, pendingRefundResponse{Refund: created, Error: err.Error()})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleRefundAuthorization answers whether role may approve amount: ?role=manager&amount=150.
func (h *Handler) handleRefundAuthorization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := domainRefund.Role(q.Get("role"))
	amount, err := decimal.NewFromString(q.Get("amount"))
	if role == "" || err != nil {
		writeError(w, http.StatusBadRequest, errBadQuery)
		return
	}
	writeJSON(w, http.StatusOK, authorizationResponse{
		Role:       string(role),
		Amount:     amount,
		CanApprove: h.deps.Refunds.CanApproveRefunds(role, amount),
	})
}

func (h *Handler) handleApproveRefund(w http.ResponseWriter, r *http.Request) {
	var req approveRefundRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.deps.Refunds.Approve(r.Context(), r.PathValue("id"), req.ApprovedBy, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRejectRefund(w http.ResponseWriter, r *http.Request) {
	var req rejectRefundRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.deps.Refunds.Reject(r.Context(), r.PathValue("id"), req.RejectedBy, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleProcessRefund(w http.ResponseWriter, r *http.Request) {
	var req processRefundRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	processed, err := h.deps.Integration.ProcessRefund(r.Context(), r.PathValue("id"), domainRefund.Method(req.Method), req.TransactionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}
