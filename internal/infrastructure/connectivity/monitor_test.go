package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetSignalsOnlyOnRestore(t *testing.T) {
	m := NewMonitor(true, nil)

	m.Set(true)
	assert.Empty(t, m.Restored())

	m.MarkOffline()
	assert.False(t, m.Online())
	assert.Empty(t, m.Restored())

	m.Set(true)
	assert.True(t, m.Online())
	assert.Len(t, m.Restored(), 1)

	// a second restore before the first is consumed is coalesced
	m.Set(false)
	m.Set(true)
	assert.Len(t, m.Restored(), 1)
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	assert.True(t, HTTPProbe(srv.URL+"/up", time.Second)(ctx))
	assert.False(t, HTTPProbe(srv.URL+"/down", time.Second)(ctx))
	assert.False(t, HTTPProbe("http://127.0.0.1:1", time.Second)(ctx))
}

func TestRunAppliesConnectivityCheckResult(t *testing.T) {
	m := NewMonitor(false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx, func(context.Context) bool { return true }, time.Hour)
		close(done)
	}()

	assert.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
