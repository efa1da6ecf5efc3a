package orderapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrips(t *testing.T) {
	var patched map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		var d domain.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		_ = json.NewEncoder(w).Encode(domain.Order{ID: "srv-1", OrderNumber: d.OrderNumber, Total: decimal.NewFromInt(9)})
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.Order{{ID: "srv-1"}, {ID: "srv-2"}})
	})
	mux.HandleFunc("PATCH /orders/{id}/items/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "srv-1", r.PathValue("id"))
		assert.Equal(t, "i 1", r.PathValue("itemID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PATCH /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL+"/", 0)
	require.NoError(t, err)
	ctx := context.Background()

	o, err := c.Create(ctx, domain.Draft{OrderNumber: "A-1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", o.ID)
	assert.True(t, decimal.NewFromInt(9).Equal(o.Total))

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.PatchItemStatus(ctx, "srv-1", "i 1", domain.ItemReady))
	assert.Equal(t, "ready", patched["status"])

	assert.ErrorIs(t, c.PatchStatus(ctx, "gone", domain.StatusReady), domain.ErrNotFound)
}
