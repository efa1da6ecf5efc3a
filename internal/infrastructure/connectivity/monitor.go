package connectivity

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
)

// Monitor tracks whether outbound connectivity is available and signals
// each offline -> online transition on Restored.
type Monitor struct {
	online   atomic.Bool
	restored chan struct{}
	log      observability.Logger
}

func NewMonitor(initiallyOnline bool, logger observability.Logger) *Monitor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	m := &Monitor{
		restored: make(chan struct{}, 1),
		log:      logger.With(observability.F("component", "connectivity")),
	}
	m.online.Store(initiallyOnline)
	return m
}

func (m *Monitor) Online() bool { return m.online.Load() }

func (m *Monitor) Restored() <-chan struct{} { return m.restored }

// Set records the current connectivity. Coming back online emits one restored signal;
// pending signals are coalesced.
func (m *Monitor) Set(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		m.log.Warn("connectivity_lost")
		return
	}
	m.log.Info("connectivity_restored")
	select {
	case m.restored <- struct{}{}:
	default:
	}
}

// MarkOffline is a convenience for senders that observed a network failure.
func (m *Monitor) MarkOffline() { m.Set(false) }

// Probe checks connectivity, typically by reaching a known endpoint.
type Probe func(ctx context.Context) bool

// HTTPProbe reports online when url answers with any status below 500.
func HTTPProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// Run probes every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval time.Duration) error {
	if probe == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.Set(probe(ctx))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
