package submit

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/config"
	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/guard"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/ledger/simulator"
	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
	"github.com/lugondev/go-continuum/internal/storage"
)

const (
	reserve = 1_000_000_000_000_000
	balance = 1_000_000_000_000
)

// racingLedger lets a competitor land a swap right before each of the next
// races submissions.
type racingLedger struct {
	*simulator.Simulator
	races int
	race  func()
}

func (r *racingLedger) Submit(ctx context.Context, bundle ledger.Bundle) (solana.Signature, error) {
	if r.races > 0 {
		r.races--
		r.race()
	}
	return r.Simulator.Submit(ctx, bundle)
}

type fixture struct {
	sim     *simulator.Simulator
	client  *program.Client
	pools   *raydium.Registry
	pool    *raydium.Pool
	store   *storage.MemoryRepository
	metrics *metrics.LogMetrics
}

func newFixture(t *testing.T, seq uint64) *fixture {
	t.Helper()

	cfg := raydium.DevnetTestPool()
	cfg.CoinMint = solana.NewWallet().PublicKey().String()
	cfg.PcMint = solana.NewWallet().PublicKey().String()
	cfg.CoinDecimals = 9
	cfg.PcDecimals = 6

	sim := simulator.New(program.WrapperProgramID)
	p, err := sim.ListPool(cfg, program.RaydiumAmmV4Devnet, reserve, reserve)
	require.NoError(t, err)
	require.NoError(t, sim.SetSequence(seq))

	pools, err := raydium.NewRegistry([]config.PoolConfig{cfg})
	require.NoError(t, err)

	f := &fixture{
		sim:     sim,
		client:  program.New(program.WrapperProgramID),
		pools:   pools,
		pool:    p,
		store:   storage.NewMemoryRepository(),
		metrics: metrics.NewLogMetrics(zap.NewNop()),
	}

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix, err := f.client.InitializePoolAuthority(payer.PublicKey(), p.ID)
	require.NoError(t, err)
	_, err = sim.Submit(context.Background(), ledger.Bundle{
		FeePayer:     payer.PublicKey(),
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{payer},
	})
	require.NoError(t, err)
	return f
}

func testOptions() Options {
	return Options{
		MaxAttempts:     3,
		ConfirmTimeout:  time.Second,
		PollInterval:    time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func (f *fixture) submitter(t *testing.T, l ledger.Ledger) *Submitter {
	t.Helper()
	s, err := New(l, f.client, f.pools, testOptions())
	require.NoError(t, err)
	return s.WithStore(f.store.Submissions()).WithMetrics(f.metrics)
}

func (f *fixture) request(t *testing.T, amountIn, minOut uint64) SwapRequest {
	t.Helper()
	trader, err := f.sim.NewTrader(f.pool, balance)
	require.NoError(t, err)
	return SwapRequest{
		PoolID:       f.pool.ID,
		User:         trader.Key,
		Source:       trader.Source,
		Destination:  trader.Destination,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	}
}

func (f *fixture) sequence(t *testing.T, s *Submitter) uint64 {
	t.Helper()
	seq, err := s.Sequence().Read(context.Background())
	require.NoError(t, err)
	return seq
}

func TestSubmitSwapAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s := f.submitter(t, f.sim)

	receipt, err := s.SubmitSwap(ctx, f.request(t, 100_000_000_000, 90_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), receipt.Sequence)
	assert.Equal(t, 1, receipt.Attempts)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, uint64(6), f.sequence(t, s))

	record, err := f.store.Submissions().FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, storage.SubmissionAccepted, record.Status)
	assert.Equal(t, receipt.Signature.String(), record.Signature)
	assert.Equal(t, uint64(6), record.Sequence)

	assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricSubmissionsAttempted))
	assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricSubmissionsAccepted))
}

func TestSubmitSwapKeepsRequestID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s := f.submitter(t, f.sim)

	req := f.request(t, 100_000_000_000, 90_000_000_000)
	req.ID = "relayer-job-1"
	receipt, err := s.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "relayer-job-1", receipt.ID)

	record, err := f.store.Submissions().FindByID(ctx, "relayer-job-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, storage.SubmissionAccepted, record.Status)
}

func TestSubmitSwapRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	competitor := f.submitter(t, f.sim)
	rival := f.request(t, 1_000, 1)

	racing := &racingLedger{Simulator: f.sim, races: 1}
	racing.race = func() {
		_, err := competitor.SubmitSwap(ctx, rival)
		require.NoError(t, err)
	}
	s := f.submitter(t, racing)

	receipt, err := s.SubmitSwap(ctx, f.request(t, 100_000_000_000, 90_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), receipt.Sequence)
	assert.Equal(t, 2, receipt.Attempts)
	assert.Equal(t, uint64(7), f.sequence(t, s))
	assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricSequenceConflicts))
}

func TestSubmitSwapGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	competitor := f.submitter(t, f.sim)

	racing := &racingLedger{Simulator: f.sim, races: 10}
	racing.race = func() {
		_, err := competitor.SubmitSwap(ctx, f.request(t, 1_000, 1))
		require.NoError(t, err)
	}
	s := f.submitter(t, racing)

	_, err := s.SubmitSwap(ctx, f.request(t, 1_000, 1))
	require.ErrorIs(t, err, cerrors.ErrSequenceConflict)
	details := cerrors.DetailsOf(err)
	assert.Equal(t, uint64(3), details["observed_sequence"])
	assert.Equal(t, uint64(4), details["expected_sequence"])
	assert.Equal(t, uint64(3), f.sequence(t, s), "only the competitor's swaps landed")
}

func TestSubmitSwapSlippageIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	s := f.submitter(t, f.sim)
	req := f.request(t, 100_000_000_000, 100_000_000_000)

	_, err := s.SubmitSwap(ctx, req)
	require.ErrorIs(t, err, cerrors.ErrSlippageExceeded)
	assert.Equal(t, uint64(5), f.sequence(t, s))

	src, ok := f.sim.TokenAccount(req.Source)
	require.True(t, ok)
	assert.Equal(t, uint64(balance), src.Amount)
	assert.Nil(t, src.Delegate)

	recent, err := f.store.Submissions().FindRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, storage.SubmissionRejected, recent[0].Status)
	assert.Equal(t, cerrors.ErrCodeSlippageExceeded, recent[0].ErrorCode)
	assert.Equal(t, 1, recent[0].Attempts)
	assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricSlippageRejections))
}

func TestSubmitSwapUnknownOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.sim.HideStatuses(true)

	s, err := New(f.sim, f.client, f.pools, Options{
		MaxAttempts:     3,
		ConfirmTimeout:  20 * time.Millisecond,
		PollInterval:    time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	})
	require.NoError(t, err)
	s.WithStore(f.store.Submissions())

	_, err = s.SubmitSwap(ctx, f.request(t, 1_000, 1))
	require.ErrorIs(t, err, cerrors.ErrUnknownOutcome)
	assert.False(t, cerrors.Retryable(err))

	details := cerrors.DetailsOf(err)
	assert.Equal(t, uint64(1), details["proposed_sequence"])
	assert.Equal(t, uint64(1), details["current_sequence"])
	assert.Equal(t, true, details["sequence_spent"])
	assert.Equal(t, uint64(1), f.sequence(t, s), "nothing was resubmitted")

	recent, err := f.store.Submissions().FindRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, storage.SubmissionUnknown, recent[0].Status)
	assert.Equal(t, 1, recent[0].Attempts)
}

func TestSubmitSwapGuardReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	g := guard.NewMemoryGuard(time.Minute)
	s := f.submitter(t, f.sim).WithGuard(g)

	ok, err := g.Acquire(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.SubmitSwap(ctx, f.request(t, 1_000, 1))
	assert.ErrorIs(t, err, cerrors.ErrSequenceConflict)
	assert.Equal(t, uint64(0), f.sequence(t, s))

	require.NoError(t, g.Release(ctx, 1))
	receipt, err := s.SubmitSwap(ctx, f.request(t, 1_000, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Sequence)

	ok, err = g.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok, "reservation released after the attempt")
}

func TestSubmitSwapValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	s := f.submitter(t, f.sim)

	req := f.request(t, 0, 0)
	_, err := s.SubmitSwap(ctx, req)
	assert.ErrorIs(t, err, cerrors.ErrInvalidRequest)

	req = f.request(t, 100, 1)
	req.PoolID = solana.NewWallet().PublicKey()
	_, err = s.SubmitSwap(ctx, req)
	assert.ErrorIs(t, err, cerrors.ErrPoolNotFound)

	req = f.request(t, 100, 1)
	other := f.request(t, 100, 1)
	req.Source = other.Source
	_, err = s.SubmitSwap(ctx, req)
	assert.ErrorIs(t, err, cerrors.ErrInvalidRequest)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	sim := simulator.New(program.WrapperProgramID)
	s, err := New(sim, program.New(program.WrapperProgramID), nil, testOptions())
	require.NoError(t, err)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = s.Sequence().Read(ctx)
	assert.ErrorIs(t, err, cerrors.ErrNotInitialized)

	_, err = s.Initialize(ctx, payer)
	require.NoError(t, err)

	seq, err := s.Sequence().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	_, err = s.Initialize(ctx, payer)
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)
}

func TestNewRejectsZeroAttempts(t *testing.T) {
	_, err := New(simulator.New(program.WrapperProgramID), program.New(program.WrapperProgramID), nil, Options{})
	assert.Error(t, err)
}
