package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apporder "github.com/Zhima-Mochi/kitchen-ops/internal/application/order"
	domainInventory "github.com/Zhima-Mochi/kitchen-ops/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domainRefund "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

type Handler struct {
	deps     Deps
	validate *validator.Validate
	log      observability.Logger
	tracer   observability.Tracer
	metrics  observability.Metrics
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	maxBodyBytes         = 1 << 20
)

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	tracer, logger, metrics := observability.Resolve(tel)
	return &Handler{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.With(observability.F("component", componentHTTPHandler)),
		tracer:   tracer,
		metrics:  metrics,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodGet, "/orders", h.handleListOrders)
	h.muxHandle(mux, http.MethodPost, "/orders", h.handleCreateOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/by-client", h.handleOrdersByClient)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}/status", h.handleOrderStatus)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}/priority", h.handleOrderPriority)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}/notes", h.handleOrderNotes)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}/items/{itemID}/status", h.handleItemStatus)

	h.muxHandle(mux, http.MethodGet, "/refunds", h.handleListRefunds)
	h.muxHandle(mux, http.MethodPost, "/refunds", h.handleCreateRefund)
	h.muxHandle(mux, http.MethodGet, "/refunds/authorization", h.handleRefundAuthorization)
	h.muxHandle(mux, http.MethodPost, "/refunds/{id}/approve", h.handleApproveRefund)
	h.muxHandle(mux, http.MethodPost, "/refunds/{id}/reject", h.handleRejectRefund)
	h.muxHandle(mux, http.MethodPost, "/refunds/{id}/process", h.handleProcessRefund)

	h.muxHandle(mux, http.MethodPost, "/payments/complete", h.handleCompletePayment)
	h.muxHandle(mux, http.MethodGet, "/queue", h.handleQueue)
	h.muxHandle(mux, http.MethodPost, "/queue/drain", h.handleDrainQueue)
	h.muxHandle(mux, http.MethodGet, "/devices", h.handleDevices)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	if h.deps.Live != nil {
		// Upgraded connections outlive the request, so only the trace and request logger apply.
		mux.Handle("GET /ws", h.withTrace(ObservabilityMiddleware(h.log, requestIDHeader, tenantIDHeader)(h.deps.Live)))
	}

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	pattern := method + " " + route
	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log, requestIDHeader, tenantIDHeader)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), pattern)))
	}))
}

func requestIDHeader(r *http.Request) string { return r.Header.Get(headerRequestID) }

func tenantIDHeader(r *http.Request) string { return r.Header.Get(headerTenantID) }

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		spanName := routeFromContext(parentCtx)
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := h.tracer.Start(parentCtx, spanName,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", spanName),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.user_agent", r.UserAgent()),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	requests := h.metrics.Counter(observability.MHTTPRequests)
	durations := h.metrics.Histogram(observability.MHTTPRequestDuration)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := routeFromContext(r.Context())
		status := strconv.Itoa(lrw.status)
		requests.Add(1, observability.L("method", r.Method), observability.L("route", route), observability.L("status", status))
		durations.Observe(time.Since(start).Seconds(), observability.L("method", r.Method), observability.L("route", route), observability.L("status", status))
	})
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, domainOrder.ErrInvalidStatus),
		errors.Is(err, domainOrder.ErrInvalidPriority),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrInvalidAmount),
		errors.Is(err, domainOrder.ErrEmptyOrder),
		errors.Is(err, domainRefund.ErrValidation),
		errors.Is(err, domainInventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainRefund.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainRefund.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domainRefund.ErrUnsupportedMethod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apporder.ErrSyncFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
