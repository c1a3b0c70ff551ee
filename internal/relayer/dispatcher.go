package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/sequence"
	"github.com/lugondev/go-continuum/internal/submit"
)

// ErrStopped is returned for requests the dispatcher can no longer serve.
var ErrStopped = errors.New("relayer stopped")

// SwapSubmitter submits one swap with retry-with-refresh.
type SwapSubmitter interface {
	SubmitSwap(ctx context.Context, req submit.SwapRequest) (*submit.Receipt, error)
}

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobAbandoned
)

// job is one queued swap. state is guarded by the dispatcher's mu.
type job struct {
	id    string
	req   submit.SwapRequest
	done  chan result
	state jobState
}

type result struct {
	receipt *submit.Receipt
	err     error
}

// Dispatcher releases queued swaps one at a time in the order of their
// target sequence.
type Dispatcher struct {
	submitter SwapSubmitter
	tracker   *sequence.Tracker
	metrics   metrics.Metrics
	logger    *zap.Logger

	wake    chan struct{}
	queued  atomic.Int64
	mu      sync.Mutex
	stopped bool

	// carry holds stale entries taken from the tracker; only Run touches it.
	carry []sequence.Pending
}

// NewDispatcher creates a dispatcher over tracker's queue.
func NewDispatcher(submitter SwapSubmitter, tracker *sequence.Tracker) *Dispatcher {
	return &Dispatcher{
		submitter: submitter,
		tracker:   tracker,
		metrics:   metrics.NewNoopMetrics(),
		logger:    zap.NewNop(),
		wake:      make(chan struct{}, 1),
	}
}

// WithLogger sets a custom logger.
func (d *Dispatcher) WithLogger(logger *zap.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// WithMetrics sets the metrics backend.
func (d *Dispatcher) WithMetrics(m metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Queued returns the number of swaps accepted but not yet answered.
func (d *Dispatcher) Queued() int {
	return int(d.queued.Load())
}

// Wake schedules a pass over the queue.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Submit queues req and waits for its outcome or ctx. A caller that leaves
// before its swap is dispatched takes it off the queue; one that leaves
// while the swap is in flight gets UnknownOutcome naming the submission, so
// it can look the outcome up instead of submitting again.
func (d *Dispatcher) Submit(ctx context.Context, req submit.SwapRequest) (*submit.Receipt, error) {
	j := &job{id: uuid.NewString(), done: make(chan result, 1)}
	req.ID = j.id
	j.req = req

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, ErrStopped
	}
	p := d.tracker.Append(j.id, j)
	d.mu.Unlock()

	d.queued.Add(1)
	d.gauge(ctx)
	d.logger.Debug("swap queued", zap.String("id", p.ID), zap.Uint64("target", p.Sequence))
	d.Wake()

	select {
	case r := <-j.done:
		return r.receipt, r.err
	case <-ctx.Done():
		return d.abandon(ctx, j)
	}
}

func (d *Dispatcher) abandon(ctx context.Context, j *job) (*submit.Receipt, error) {
	d.mu.Lock()
	state := j.state
	if state == jobQueued {
		j.state = jobAbandoned
		d.tracker.Remove(j.id)
	}
	d.mu.Unlock()

	switch state {
	case jobQueued:
		d.queued.Add(-1)
		d.gauge(context.WithoutCancel(ctx))
		d.logger.Debug("swap abandoned before dispatch", zap.String("id", j.id))
		return nil, ctx.Err()
	default:
		select {
		case r := <-j.done:
			return r.receipt, r.err
		default:
		}
		return nil, cerrors.NewError(cerrors.ErrCodeUnknownOutcome,
			fmt.Sprintf("caller left while submission %s was in flight", j.id),
		).WithCause(ctx.Err()).WithDetails(map[string]any{
			"submission_id": j.id,
		})
	}
}

// Run serves the queue until ctx is done, then fails whatever is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.stop()
	for {
		for ctx.Err() == nil {
			p, ok := d.next()
			if !ok {
				break
			}
			d.run(ctx, p)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

// next picks stale entries first, they were queued earliest, then the
// entry targeting current+1. A gap left by a swap that never landed is
// closed by renumbering.
func (d *Dispatcher) next() (sequence.Pending, bool) {
	d.carry = append(d.carry, d.tracker.Stale()...)
	if len(d.carry) > 0 {
		p := d.carry[0]
		d.carry = d.carry[1:]
		return p, true
	}
	if p, ok := d.tracker.Ready(); ok {
		return p, true
	}
	if d.tracker.PendingCount() > 0 {
		d.tracker.Renumber()
		return d.tracker.Ready()
	}
	return sequence.Pending{}, false
}

func (d *Dispatcher) run(ctx context.Context, p sequence.Pending) {
	j := p.Payload.(*job)
	if !d.claim(j) {
		return
	}
	receipt, err := d.submitter.SubmitSwap(ctx, j.req)
	if err == nil {
		if _, oerr := d.tracker.Observe(ctx, receipt.Sequence); oerr != nil {
			d.logger.Warn("record accepted sequence", zap.Uint64("sequence", receipt.Sequence), zap.Error(oerr))
		}
	}
	d.finish(ctx, j, result{receipt: receipt, err: err})
}

// claim marks j in flight unless its caller already left.
func (d *Dispatcher) claim(j *job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if j.state == jobAbandoned {
		return false
	}
	j.state = jobRunning
	return true
}

func (d *Dispatcher) finish(ctx context.Context, j *job, r result) {
	j.done <- r
	d.queued.Add(-1)
	d.gauge(ctx)
}

func (d *Dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	ctx := context.Background()
	left := append(d.carry, d.tracker.Stale()...)
	d.carry = nil
	for {
		p, ok := d.tracker.Ready()
		if !ok {
			if d.tracker.PendingCount() == 0 {
				break
			}
			d.tracker.Renumber()
			continue
		}
		left = append(left, p)
	}
	for _, p := range left {
		if j := p.Payload.(*job); d.claim(j) {
			d.finish(ctx, j, result{err: ErrStopped})
		}
	}
}

func (d *Dispatcher) gauge(ctx context.Context) {
	_ = d.metrics.UpdateGauge(ctx, metrics.MetricPendingSubmissions, float64(d.queued.Load()))
}
