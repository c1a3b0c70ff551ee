package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics exposes metrics through a private Prometheus registry.
// Collectors are created on first use of a name.
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetrics creates a backend whose metric names are prefixed
// with namespace.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// HandlerFor returns the exposition handler of the Prometheus backend in m,
// looking inside a Collection, or nil when m has none.
func HandlerFor(m Metrics) http.Handler {
	switch v := m.(type) {
	case *PrometheusMetrics:
		return v.Handler()
	case *Collection:
		for _, member := range v.Members() {
			if h := HandlerFor(member); h != nil {
				return h
			}
		}
	}
	return nil
}

func (p *PrometheusMetrics) Initialize(ctx context.Context) error {
	return p.registry.Register(collectors.NewGoCollector())
}

func (p *PrometheusMetrics) Flush(ctx context.Context) error    { return nil }
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error { return nil }

func (p *PrometheusMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: p.namespace, Name: name})
		if err := p.registry.Register(g); err != nil {
			p.mu.Unlock()
			return err
		}
		p.gauges[name] = g
	}
	p.mu.Unlock()

	g.Set(value)
	return nil
}

func (p *PrometheusMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Namespace: p.namespace, Name: name + "_total"})
		if err := p.registry.Register(c); err != nil {
			p.mu.Unlock()
			return err
		}
		p.counters[name] = c
	}
	p.mu.Unlock()

	c.Add(float64(value))
	return nil
}

func (p *PrometheusMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		})
		if err := p.registry.Register(h); err != nil {
			p.mu.Unlock()
			return err
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()

	h.Observe(value)
	return nil
}
