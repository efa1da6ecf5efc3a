package observability

import (
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

// New assembles an Observability provider backed by the supplied tracer, logger, and metric instruments.
// Missing instruments resolve to no-ops so callers never need nil checks.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &provider{
		tracer: tracer,
		logger: logger,
		metrics: &registeredMetrics{
			counters:   nonNil(counters),
			histograms: nonNil(histograms),
		},
	}
}

func nonNil[V comparable](in map[observability.MetricKey]V) map[observability.MetricKey]V {
	var zero V
	out := make(map[observability.MetricKey]V, len(in))
	for k, v := range in {
		if v == zero {
			continue
		}
		out[k] = v
	}
	return out
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}

func (p *provider) Metrics() observability.Metrics {
	return p.metrics
}
