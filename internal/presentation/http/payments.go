package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application/integration"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/writequeue"
)

type completePaymentRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Method  string `json:"method" validate:"required,oneof=cash card"`
}

type queueResponse struct {
	Pending int                `json:"pending"`
	Entries []writequeue.Entry `json:"entries"`
}

// handleCompletePayment settles an order from the store in full. A 200 means the payment
// is recorded; failed side effects are listed in the outcome.
func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var req completePaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.deps.Orders.Get(req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	outcome, err := h.deps.Integration.CompletePayment(r.Context(),
		integration.CompletionFromOrder(o, payment.Method(req.Method)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleQueue(w http.ResponseWriter, _ *http.Request) {
	entries := h.deps.Queue.Entries()
	writeJSON(w, http.StatusOK, queueResponse{Pending: len(entries), Entries: entries})
}

func (h *Handler) handleDrainQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Queue.ProcessQueue(r.Context()))
}

func (h *Handler) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Integration.DeviceStatus())
}
