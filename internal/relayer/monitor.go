package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/sequence"
)

// DefaultPollInterval is the default interval for polling the sequence
// state account.
const DefaultPollInterval = 1 * time.Second

// Monitor polls the authoritative sequence and feeds it to the tracker.
type Monitor struct {
	reader   *sequence.Manager
	tracker  *sequence.Tracker
	metrics  metrics.Metrics
	interval time.Duration
	logger   *zap.Logger
	advanced func()
}

// NewMonitor creates a monitor polling every interval.
func NewMonitor(reader *sequence.Manager, tracker *sequence.Tracker, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		reader:   reader,
		tracker:  tracker,
		metrics:  metrics.NewNoopMetrics(),
		interval: interval,
		logger:   zap.NewNop(),
		advanced: func() {},
	}
}

// WithLogger sets a custom logger.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// WithMetrics sets the metrics backend.
func (m *Monitor) WithMetrics(mt metrics.Metrics) *Monitor {
	m.metrics = mt
	return m
}

// OnAdvance registers fn to run whenever the observed sequence moves.
func (m *Monitor) OnAdvance(fn func()) *Monitor {
	m.advanced = fn
	return m
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("starting sequence monitor",
		zap.Stringer("address", m.reader.Address()),
		zap.Duration("poll_interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial fetch
	if err := m.Poll(ctx); err != nil {
		m.logger.Warn("initial sequence poll failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sequence monitor shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Poll(ctx); err != nil {
				m.logger.Warn("sequence poll failed", zap.Error(err))
			}
		}
	}
}

// Poll reads the sequence once.
func (m *Monitor) Poll(ctx context.Context) error {
	seq, err := m.reader.Read(ctx)
	if err != nil {
		_ = m.metrics.IncrementCounter(ctx, metrics.MetricSequencePollErrors, 1)
		return err
	}

	advanced, err := m.tracker.Observe(ctx, seq)
	if err != nil {
		return err
	}
	_ = m.metrics.UpdateGauge(ctx, metrics.MetricCurrentSequence, float64(m.tracker.Current()))
	if advanced {
		m.logger.Debug("sequence advanced", zap.Uint64("sequence", seq))
		m.advanced()
	}
	return nil
}
