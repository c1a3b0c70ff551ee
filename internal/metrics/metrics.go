// Package metrics records submitter and relayer counters, gauges and
// latencies. Backends are NoopMetrics, LogMetrics (zap) and
// PrometheusMetrics; a Collection fans out to several of them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Metrics is the sink the submitter and relayer report to.
type Metrics interface {
	Initialize(ctx context.Context) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// UpdateGauge sets a value that can go up or down, like the current
	// sequence.
	UpdateGauge(ctx context.Context, name string, value float64) error
	// IncrementCounter adds to a monotonically increasing total.
	IncrementCounter(ctx context.Context, name string, value uint64) error
	// RecordHistogram observes one sample, like a submit latency.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection reports to every backend it holds. A failing backend does not
// stop the others; their errors are joined.
type Collection struct {
	mu      sync.RWMutex
	members []Metrics
}

func NewCollection(members ...Metrics) *Collection {
	return &Collection{members: members}
}

func (c *Collection) Add(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, m)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Members returns a snapshot of the backends.
func (c *Collection) Members() []Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Metrics(nil), c.members...)
}

func (c *Collection) each(fn func(Metrics) error) error {
	var errs []error
	for _, m := range c.Members() {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// NoopMetrics is a Metrics implementation that does nothing.
// Useful for testing or when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a new NoopMetrics.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Initialize(ctx context.Context) error                              { return nil }
func (n *NoopMetrics) Flush(ctx context.Context) error                                   { return nil }
func (n *NoopMetrics) Shutdown(ctx context.Context) error                                { return nil }
func (n *NoopMetrics) UpdateGauge(ctx context.Context, name string, value float64) error { return nil }
func (n *NoopMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return nil
}
func (n *NoopMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	return nil
}

// LogMetrics is a Metrics implementation that logs all metrics using zap.
type LogMetrics struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	gauges   map[string]float64
	counters map[string]uint64
}

// NewLogMetrics creates a new LogMetrics with the given logger.
// If logger is nil, a no-op logger is used.
func NewLogMetrics(logger *zap.Logger) *LogMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMetrics{
		logger:   logger,
		gauges:   make(map[string]float64),
		counters: make(map[string]uint64),
	}
}

// Initialize initializes the log metrics.
func (l *LogMetrics) Initialize(ctx context.Context) error {
	l.logger.Info("metrics initialized")
	return nil
}

// Flush logs all current metric values.
func (l *LogMetrics) Flush(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	l.logger.Info("metrics flush",
		zap.Any("gauges", l.gauges),
		zap.Any("counters", l.counters),
	)
	return nil
}

// Shutdown shuts down the log metrics.
func (l *LogMetrics) Shutdown(ctx context.Context) error {
	l.logger.Info("metrics shutdown")
	return nil
}

// UpdateGauge logs the gauge update.
func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gauges[name] = value
	l.logger.Debug("gauge updated", zap.String("name", name), zap.Float64("value", value))
	return nil
}

// IncrementCounter logs the counter increment.
func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[name] += value
	l.logger.Debug("counter incremented",
		zap.String("name", name),
		zap.Uint64("value", value),
		zap.Uint64("total", l.counters[name]),
	)
	return nil
}

// RecordHistogram logs the histogram record.
func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.logger.Debug("histogram recorded", zap.String("name", name), zap.Float64("value", value))
	return nil
}

// Counter returns the accumulated value of a counter.
func (l *LogMetrics) Counter(name string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[name]
}

// Gauge returns the last value of a gauge.
func (l *LogMetrics) Gauge(name string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gauges[name]
}

// New builds the backends named in backend, a comma separated list of
// "log", "prometheus" and "none". More than one backend yields a
// Collection.
func New(backend, namespace string, logger *zap.Logger) (Metrics, error) {
	var members []Metrics
	for _, name := range strings.Split(backend, ",") {
		switch strings.TrimSpace(name) {
		case "log":
			members = append(members, NewLogMetrics(logger))
		case "prometheus":
			members = append(members, NewPrometheusMetrics(namespace))
		case "none", "":
		default:
			return nil, fmt.Errorf("unsupported metrics backend: %s", name)
		}
	}
	switch len(members) {
	case 0:
		return NewNoopMetrics(), nil
	case 1:
		return members[0], nil
	default:
		return NewCollection(members...), nil
	}
}

// Metric names used by the submitter and relayer.
const (
	MetricSubmissionsAttempted = "submissions_attempted"
	MetricSubmissionsAccepted  = "submissions_accepted"
	MetricSubmissionsFailed    = "submissions_failed"
	MetricSequenceConflicts    = "sequence_conflicts"
	MetricSlippageRejections   = "slippage_rejections"
	MetricUnknownOutcomes      = "unknown_outcomes"
	MetricSubmitLatencyMs      = "submit_latency_milliseconds"
	MetricCurrentSequence      = "current_sequence"
	MetricPendingSubmissions   = "pending_submissions"
	MetricSequencePollErrors   = "sequence_poll_errors"
	MetricRelayerRequests      = "relayer_requests"
	MetricRelayerRateLimited   = "relayer_rate_limited"
	MetricPoolsProtected       = "pools_protected"
)
