package httppresentation

import (
	"net/http"

	domainOrder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"

	"github.com/shopspring/decimal"
)

type orderItemRequest struct {
	ID          string          `json:"id" validate:"required"`
	MenuItemID  string          `json:"menuItemId"`
	Name        string          `json:"name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"omitempty,oneof=appetizer main dessert beverage side"`
	PrepTime    *int            `json:"prepTime" validate:"omitempty,gte=0"`
	Notes       string          `json:"notes"`
	TrackingIDs []string        `json:"itemOrderIds"`
}

type createOrderRequest struct {
	OrderNumber   string             `json:"orderNumber" validate:"required"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Type          string             `json:"orderType" validate:"required,oneof=dine-in takeaway delivery"`
	TableNumber   *int               `json:"tableNumber" validate:"required_if=Type dine-in"`
	CustomerName  string             `json:"customerName"`
	PaymentMethod string             `json:"paymentMethod"`
	Priority      string             `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ChefNotes     string             `json:"chefNotes"`
}

func (r createOrderRequest) draft() domainOrder.Draft {
	items := make([]domainOrder.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domainOrder.Item{
			ID:          it.ID,
			MenuItemID:  it.MenuItemID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Category:    domainOrder.Category(it.Category),
			PrepTime:    it.PrepTime,
			Notes:       it.Notes,
			TrackingIDs: it.TrackingIDs,
		})
	}
	return domainOrder.Draft{
		OrderNumber:   r.OrderNumber,
		Items:         items,
		Type:          domainOrder.Type(r.Type),
		TableNumber:   r.TableNumber,
		CustomerName:  r.CustomerName,
		PaymentMethod: r.PaymentMethod,
		Priority:      domainOrder.Priority(r.Priority),
		ChefNotes:     r.ChefNotes,
	}
}

// pendingOrderResponse is returned when the order is kept locally but not yet created remotely.
type pendingOrderResponse struct {
	Order *domainOrder.Order `json:"order"`
	Error string             `json:"error"`
}

type clientGroupResponse struct {
	Key    string               `json:"key"`
	Orders []*domainOrder.Order `json:"orders"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type priorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low normal high urgent"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Orders.Orders())
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := h.deps.Orders.AddOrder(r.Context(), req.draft())
	if err != nil {
		if o != nil {
			writeJSON(w, http.StatusAccepted, pendingOrderResponse{Order: o, Error: err.Error()})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) handleOrdersByClient(w http.ResponseWriter, _ *http.Request) {
	groups := h.deps.Orders.OrdersByClient()
	out := make([]clientGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, clientGroupResponse{Key: g.Key, Orders: g.Orders})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	if err := h.deps.Orders.UpdateOrderStatus(r.Context(), id, domainOrder.Status(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, id)
}

func (h *Handler) handleOrderPriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	if err := h.deps.Orders.UpdateOrderPriority(r.Context(), id, domainOrder.Priority(req.Priority)); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, id)
}

func (h *Handler) handleOrderNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	if err := h.deps.Orders.UpdateOrderNotes(r.Context(), id, req.Notes); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, id)
}

func (h *Handler) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	err := h.deps.Orders.UpdateItemStatus(r.Context(), id, r.PathValue("itemID"), domainOrder.ItemStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, id)
}

func (h *Handler) writeOrder(w http.ResponseWriter, id string) {
	o, err := h.deps.Orders.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
