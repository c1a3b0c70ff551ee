package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectionFansOut(t *testing.T) {
	ctx := context.Background()
	a := NewLogMetrics(zap.NewNop())
	b := NewLogMetrics(nil)

	c := NewCollection(a)
	c.Add(b)
	c.Add(NewNoopMetrics())
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.IncrementCounter(ctx, MetricSubmissionsAccepted, 2))
	require.NoError(t, c.IncrementCounter(ctx, MetricSubmissionsAccepted, 1))
	require.NoError(t, c.UpdateGauge(ctx, MetricCurrentSequence, 6))
	require.NoError(t, c.RecordHistogram(ctx, MetricSubmitLatencyMs, 12.5))
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Shutdown(ctx))

	for _, m := range []*LogMetrics{a, b} {
		assert.Equal(t, uint64(3), m.Counter(MetricSubmissionsAccepted))
		assert.Equal(t, float64(6), m.Gauge(MetricCurrentSequence))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"log", false},
		{"prometheus", false},
		{"none", false},
		{"", false},
		{"log,prometheus", false},
		{"log, none", false},
		{"statsd", true},
		{"log,statsd", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			m, err := New(tt.backend, "continuum", zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestPrometheusHandler(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusMetrics("continuum")
	require.NoError(t, p.Initialize(ctx))

	require.NoError(t, p.IncrementCounter(ctx, MetricSequenceConflicts, 1))
	require.NoError(t, p.IncrementCounter(ctx, MetricSequenceConflicts, 1))
	require.NoError(t, p.UpdateGauge(ctx, MetricCurrentSequence, 42))
	require.NoError(t, p.RecordHistogram(ctx, MetricSubmitLatencyMs, 3))

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "continuum_sequence_conflicts_total 2")
	assert.Contains(t, text, "continuum_current_sequence 42")
	assert.Contains(t, text, "continuum_submit_latency_milliseconds_count 1")
}

type failingMetrics struct{ *NoopMetrics }

func (failingMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return errors.New("backend down")
}

func TestCollectionKeepsGoingOnError(t *testing.T) {
	ctx := context.Background()
	l := NewLogMetrics(nil)
	c := NewCollection(failingMetrics{NewNoopMetrics()}, l)

	err := c.IncrementCounter(ctx, MetricRelayerRequests, 1)
	assert.EqualError(t, err, "backend down")
	assert.Equal(t, uint64(1), l.Counter(MetricRelayerRequests))
}

func TestNewCombinesBackends(t *testing.T) {
	m, err := New("log,prometheus", "continuum", zap.NewNop())
	require.NoError(t, err)

	c, ok := m.(*Collection)
	require.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.NotNil(t, HandlerFor(m))

	single, err := New("log", "continuum", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogMetrics{}, single)
	assert.Nil(t, HandlerFor(single))
}
