package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/kitchen-ops/internal/application/integration"
	apporder "github.com/Zhima-Mochi/kitchen-ops/internal/application/order"
	apprefund "github.com/Zhima-Mochi/kitchen-ops/internal/application/refund"
	domainOrder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domainRefund "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/hardware"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/kitchen-ops/internal/infrastructure/writequeue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	store   *apporder.Store
	ledger  *memory.TransactionLog
	drawer  *hardware.Drawer
	queue   *writequeue.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	ids := id.NewUUIDGenerator()

	drawer := hardware.NewDrawer(nil)
	printer := hardware.NewPrinter(nil)
	require.NoError(t, drawer.Connect(ctx))
	require.NoError(t, printer.Connect(ctx))

	ledger := memory.NewTransactionLog()
	archive := memory.NewSalesArchive()
	store := apporder.NewStore(memory.NewOrderAPI(ids), archive, nil, ids, nil)
	engine := apprefund.NewEngine(memory.NewRefundRepository(), ledger, &memory.Alerts{}, drawer, ids, domainRefund.DefaultPolicy(), nil)
	facade := integration.NewFacade(ledger, nil, archive, engine, nil,
		integration.Devices{Drawer: drawer, Printer: printer}, ids, integration.Options{PrintReceipts: true}, nil)
	queue := writequeue.New(writequeue.NewMemoryStore(), writequeue.Router{}, nil, ids, nil, writequeue.Options{})

	h := NewHandler(Deps{
		Orders:      store,
		Refunds:     engine,
		Integration: facade,
		Queue:       queue,
	}, nil)
	return &testServer{handler: h.Router(), store: store, ledger: ledger, drawer: drawer, queue: queue}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func orderBody(number string) map[string]any {
	return map[string]any{
		"orderNumber":   number,
		"orderType":     "takeaway",
		"customerName":  "Ana",
		"paymentMethod": "cash",
		"items": []map[string]any{
			{"id": "i1", "name": "Burger", "quantity": 2, "price": "8.50", "category": "main"},
			{"id": "i2", "name": "Cola", "quantity": 1, "price": "2.00", "category": "beverage"},
		},
	}
}

func TestCreateOrderAndAdvanceItems(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", orderBody("A-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[domainOrder.Order](t, rec)
	assert.NotContains(t, created.ID, apporder.TempIDPrefix)
	assert.Equal(t, "19", created.Total.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/orders/%s/items/i1/status", created.ID), map[string]string{"status": "preparing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domainOrder.StatusInProgress, decodeBody[domainOrder.Order](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domainOrder.Order](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/orders/by-client", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeBody[[]clientGroupResponse](t, rec)
	require.Len(t, groups, 1)
	assert.Equal(t, "customer:Ana", groups[0].Key)
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer(t)

	body := orderBody("A-2")
	body["items"] = []map[string]any{}
	rec := s.do(t, http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec), "error")

	body = orderBody("A-3")
	body["orderType"] = "dine-in"
	rec = s.do(t, http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "dine-in needs a table")
}

func TestOrderPatchErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPatch, "/orders/missing/status", map[string]string{"status": "ready"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders", orderBody("A-4"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[domainOrder.Order](t, rec)

	rec = s.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/orders/"+created.ID+"/priority", map[string]string{"priority": "urgent"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainOrder.PriorityUrgent, decodeBody[domainOrder.Order](t, rec).Priority)

	rec = s.do(t, http.MethodPatch, "/orders/"+created.ID+"/notes", map[string]string{"notes": "no onions"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no onions", decodeBody[domainOrder.Order](t, rec).ChefNotes)
	s.store.Flush()
}

func refundBody(original, amount string) map[string]any {
	return map[string]any{
		"orderId":        "o-1",
		"orderNumber":    "A-1",
		"originalAmount": original,
		"refundAmount":   amount,
		"paymentMethod":  "cash",
		"reason":         "cold food",
		"authorizedBy":   "shift lead",
	}
}

func TestRefundLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/refunds", refundBody("100", "40"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	small := decodeBody[domainRefund.Request](t, rec)
	assert.Equal(t, domainRefund.StatusApproved, small.Status)

	rec = s.do(t, http.MethodPost, "/refunds/"+small.ID+"/approve", map[string]string{"approvedBy": "manager"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/refunds/"+small.ID+"/process", map[string]string{"method": "card"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/refunds/"+small.ID+"/process", map[string]string{"method": "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[domainRefund.Request](t, rec)
	assert.Equal(t, domainRefund.StatusCompleted, done.Status)
	assert.NotEmpty(t, done.TransactionID)
	assert.Equal(t, 1, s.drawer.Opens())

	rec = s.do(t, http.MethodPost, "/refunds", refundBody("200", "150"))
	require.Equal(t, http.StatusCreated, rec.Code)
	pending := decodeBody[domainRefund.Request](t, rec)
	assert.Equal(t, domainRefund.StatusPending, pending.Status)

	rec = s.do(t, http.MethodPost, "/refunds/"+pending.ID+"/reject", map[string]string{"rejectedBy": "manager", "reason": "not eligible"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainRefund.StatusRejected, decodeBody[domainRefund.Request](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/refunds?status=rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domainRefund.Request](t, rec), 1)

	rec = s.do(t, http.MethodPost, "/refunds/nope/approve", map[string]string{"approvedBy": "manager"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefundValidationFailure(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/refunds", refundBody("100", "150"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "refund above original amount")
}

type failingUpdates struct {
	*memory.RefundRepository
}

func (failingUpdates) Update(context.Context, *domainRefund.Request) error {
	return errors.New("database unavailable")
}

func TestCreateRefundReportsPendingWhenApprovalIsNotStored(t *testing.T) {
	ids := id.NewUUIDGenerator()
	repo := failingUpdates{memory.NewRefundRepository()}
	engine := apprefund.NewEngine(repo, memory.NewTransactionLog(), &memory.Alerts{}, hardware.NewDrawer(nil), ids, domainRefund.DefaultPolicy(), nil)
	s := &testServer{handler: NewHandler(Deps{Refunds: engine}, nil).Router()}

	rec := s.do(t, http.MethodPost, "/refunds", refundBody("100", "40"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody[pendingRefundResponse](t, rec)
	require.NotNil(t, body.Refund)
	assert.Equal(t, domainRefund.StatusPending, body.Refund.Status)
	assert.Contains(t, body.Error, "database unavailable")

	stored, err := repo.Get(context.Background(), body.Refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domainRefund.StatusPending, stored.Status)
}

func TestRefundAuthorization(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/refunds/authorization?role=manager&amount=150", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[authorizationResponse](t, rec).CanApprove)

	rec = s.do(t, http.MethodGet, "/refunds/authorization?role=manager&amount=250", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[authorizationResponse](t, rec).CanApprove)

	rec = s.do(t, http.MethodGet, "/refunds/authorization?role=cashier&amount=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompletePayment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", orderBody("A-5"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[domainOrder.Order](t, rec)

	rec = s.do(t, http.MethodPost, "/payments/complete", map[string]string{"orderId": created.ID, "method": "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decodeBody[integration.PaymentOutcome](t, rec)
	assert.True(t, outcome.PaymentRecorded)
	assert.True(t, outcome.SideEffectsCompleted)
	assert.Equal(t, 1, s.drawer.Opens())
	require.Len(t, s.ledger.Entries(), 1)

	rec = s.do(t, http.MethodPost, "/payments/complete", map[string]string{"orderId": "missing", "method": "cash"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueDevicesAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeBody[queueResponse](t, rec).Pending)

	rec = s.do(t, http.MethodPost, "/queue/drain", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[writequeue.DrainResult](t, rec).Skipped, "empty queue")

	rec = s.do(t, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
}

func TestStatusForMapsErrorTaxonomy(t *testing.T) {
	cases := map[error]int{
		domainOrder.ErrInvalidStatus:                       http.StatusBadRequest,
		domainRefund.ErrValidation:                         http.StatusBadRequest,
		domainOrder.ErrNotFound:                            http.StatusNotFound,
		domainRefund.ErrInvalidTransition:                  http.StatusConflict,
		domainRefund.ErrUnsupportedMethod:                  http.StatusUnprocessableEntity,
		apporder.ErrSyncFailed:                             http.StatusBadGateway,
		errors.New("boom"):                                 http.StatusInternalServerError,
		fmt.Errorf("wrapped: %w", domainRefund.ErrNotFound): http.StatusNotFound,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
