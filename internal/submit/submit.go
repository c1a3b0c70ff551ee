// Package submit runs the wrapped swap control flow end to end: read the
// sequence, derive addresses, grant a bounded approval, frame the swap with
// the proposed next sequence and submit both as one atomic bundle.
//
// Rejections that a fresh view can fix (a sequence conflict, a missing or
// spent approval) are retried with bounded exponential backoff; every
// attempt re-reads the sequence and rebuilds the bundle from scratch. A
// confirmation timeout is reconciled against the ledger before anything
// is resubmitted.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/delegate"
	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/guard"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
	"github.com/lugondev/go-continuum/internal/sequence"
	"github.com/lugondev/go-continuum/internal/storage"
)

// Options bounds retries and confirmation polling.
type Options struct {
	MaxAttempts     int
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultOptions returns the relayer defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     5,
		ConfirmTimeout:  30 * time.Second,
		PollInterval:    500 * time.Millisecond,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// SwapRequest asks for amountIn of the source account's mint to be swapped
// through PoolID into Destination.
type SwapRequest struct {
	// ID names the submission record; a random one is used when empty.
	ID           string
	PoolID       solana.PublicKey
	User         solana.PrivateKey
	Source       solana.PublicKey
	Destination  solana.PublicKey
	AmountIn     uint64
	MinAmountOut uint64
}

// Receipt describes an accepted swap.
type Receipt struct {
	ID        string
	Signature solana.Signature
	Sequence  uint64
	Slot      uint64
	Attempts  int
}

// Submitter submits wrapped swaps against one wrapper deployment.
type Submitter struct {
	ledger   ledger.Ledger
	client   *program.Client
	pools    *raydium.Registry
	sequence *sequence.Manager
	amm      solana.PublicKey
	opts     Options

	guard   guard.Guard
	store   storage.SubmissionRepository
	metrics metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Submitter. pools lists the pools swaps may target.
func New(l ledger.Ledger, client *program.Client, pools *raydium.Registry, opts Options) (*Submitter, error) {
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", opts.MaxAttempts)
	}
	fifo, err := client.Deriver().FifoState()
	if err != nil {
		return nil, fmt.Errorf("derive fifo_state: %w", err)
	}

	return &Submitter{
		ledger:   l,
		client:   client,
		pools:    pools,
		sequence: sequence.NewManager(l, fifo.Address),
		amm:      program.RaydiumAmmV4Devnet,
		opts:     opts,
		metrics:  metrics.NewNoopMetrics(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}, nil
}

// WithAmmProgram sets the AMM the wrapper forwards swaps to.
func (s *Submitter) WithAmmProgram(id solana.PublicKey) *Submitter {
	s.amm = id
	return s
}

// WithGuard reserves each target before submitting.
func (s *Submitter) WithGuard(g guard.Guard) *Submitter {
	s.guard = g
	return s
}

// WithStore records every submission and its outcome.
func (s *Submitter) WithStore(store storage.SubmissionRepository) *Submitter {
	s.store = store
	return s
}

// WithMetrics sets the metrics sink.
func (s *Submitter) WithMetrics(m metrics.Metrics) *Submitter {
	s.metrics = m
	return s
}

// WithLogger sets the logger.
func (s *Submitter) WithLogger(logger *zap.Logger) *Submitter {
	s.logger = logger
	s.sequence.WithLogger(logger)
	return s
}

// Sequence returns the manager reading the sequence-state account.
func (s *Submitter) Sequence() *sequence.Manager {
	return s.sequence
}

// Initialize creates the sequence-state account at 0. It returns
// AlreadyInitialized without submitting when the account exists.
func (s *Submitter) Initialize(ctx context.Context, payer solana.PrivateKey) (solana.Signature, error) {
	_, err := s.ledger.GetAccount(ctx, s.sequence.Address())
	switch {
	case err == nil:
		return solana.Signature{}, cerrors.AlreadyInitialized("sequence state")
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return solana.Signature{}, fmt.Errorf("read sequence state: %w", err)
	}

	ix, err := s.client.Initialize(payer.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := s.ledger.Submit(ctx, ledger.Bundle{
		FeePayer:     payer.PublicKey(),
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{payer},
	})
	if err != nil {
		return sig, err
	}
	if _, err := ledger.AwaitConfirmation(ctx, s.ledger, sig, s.opts.ConfirmTimeout, s.opts.PollInterval); err != nil {
		return sig, err
	}

	s.logger.Info("sequence state initialized",
		zap.Stringer("address", s.sequence.Address()),
		zap.Stringer("signature", sig))
	return sig, nil
}

// swapPlan is the part of a submission that does not change between
// attempts.
type swapPlan struct {
	req      SwapRequest
	pool     *raydium.Pool
	mint     solana.PublicKey
	decimals uint8
	accounts program.SwapAccounts
}

// SubmitSwap runs the swap flow with retry-with-refresh.
func (s *Submitter) SubmitSwap(ctx context.Context, req SwapRequest) (*Receipt, error) {
	plan, err := s.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	started := s.now()
	record := &storage.SubmissionModel{
		ID:           id,
		Pool:         req.PoolID.String(),
		User:         req.User.PublicKey().String(),
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
		Status:       storage.SubmissionPending,
		CreatedAt:    started.UTC(),
	}
	logger := s.logger.With(zap.String("submission", record.ID), zap.Stringer("pool", req.PoolID))
	s.count(ctx, metrics.MetricSubmissionsAttempted)

	var receipt *Receipt
	operation := func() error {
		record.Attempts++
		r, err := s.attempt(ctx, plan, record, logger)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		receipt = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialInterval
	policy.MaxInterval = s.opts.MaxInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.Info("retrying swap after refresh",
			zap.Int("attempt", record.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err = backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.opts.MaxAttempts-1)), ctx),
		notify)

	_ = s.metrics.RecordHistogram(ctx, metrics.MetricSubmitLatencyMs, float64(s.now().Sub(started).Milliseconds()))
	if err != nil {
		s.finish(ctx, record, err, logger)
		return nil, err
	}

	receipt.ID = record.ID
	receipt.Attempts = record.Attempts
	s.finish(ctx, record, nil, logger)
	return receipt, nil
}

// plan validates req and resolves the pool, mint and account list.
func (s *Submitter) plan(ctx context.Context, req SwapRequest) (*swapPlan, error) {
	if req.AmountIn == 0 {
		return nil, cerrors.InvalidRequest("amount_in must be positive")
	}
	pool, err := s.pools.Get(req.PoolID)
	if err != nil {
		return nil, err
	}

	acct, err := s.ledger.GetAccount(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("read source account: %w", err)
	}
	var source token.Account
	if err := bin.NewBinDecoder(acct.Data).Decode(&source); err != nil {
		return nil, cerrors.DecodeFailed("source token account", err)
	}
	if !source.Owner.Equals(req.User.PublicKey()) {
		return nil, cerrors.InvalidRequest(fmt.Sprintf("source %s is not owned by %s", req.Source, req.User.PublicKey()))
	}

	plan := &swapPlan{req: req, pool: pool, mint: source.Mint}
	switch {
	case source.Mint.Equals(pool.CoinMint):
		plan.decimals = pool.CoinDecimals
	case source.Mint.Equals(pool.PcMint):
		plan.decimals = pool.PcDecimals
	default:
		return nil, cerrors.InvalidRequest(fmt.Sprintf("source mint %s is not traded by pool %s", source.Mint, pool.ID))
	}

	authority, err := s.client.Deriver().PoolAuthority(pool.ID)
	if err != nil {
		return nil, fmt.Errorf("derive pool_authority: %w", err)
	}
	plan.accounts = program.SwapAccounts{
		PoolID:          pool.ID,
		User:            req.User.PublicKey(),
		UserSource:      req.Source,
		UserDestination: req.Destination,
		AmmProgram:      s.amm,
		Remaining:       pool.AccountMetas(req.Source, req.Destination, authority.Address),
	}
	return plan, nil
}

// attempt performs one read-build-submit-confirm round.
func (s *Submitter) attempt(ctx context.Context, plan *swapPlan, record *storage.SubmissionModel, logger *zap.Logger) (*Receipt, error) {
	target, err := s.sequence.ProposeNext(ctx)
	if err != nil {
		return nil, err
	}
	record.Sequence = target
	_ = s.metrics.UpdateGauge(ctx, metrics.MetricCurrentSequence, float64(target-1))

	if s.guard != nil {
		ok, err := s.guard.Acquire(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("reserve sequence %d: %w", target, err)
		}
		if !ok {
			s.count(ctx, metrics.MetricSequenceConflicts)
			return nil, cerrors.NewError(cerrors.ErrCodeSequenceConflict,
				fmt.Sprintf("sequence %d is reserved by another submitter", target),
			).WithDetails(map[string]any{"observed_sequence": target})
		}
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), target); err != nil {
				logger.Warn("release sequence reservation", zap.Uint64("sequence", target), zap.Error(err))
			}
		}()
	}

	grant, err := delegate.NewGrant(s.client.Deriver(), plan.req.User.PublicKey(), plan.req.Source, plan.mint, plan.decimals, plan.req.AmountIn)
	if err != nil {
		return nil, err
	}
	swap, err := s.client.SwapWithPoolAuthority(target, raydium.SwapData(plan.req.AmountIn, plan.req.MinAmountOut), plan.accounts)
	if err != nil {
		return nil, err
	}
	ixs, err := grant.Bundle(plan.req.AmountIn, swap)
	if err != nil {
		return nil, err
	}

	sig, err := s.ledger.Submit(ctx, ledger.Bundle{
		FeePayer:     plan.req.User.PublicKey(),
		Instructions: ixs,
		Signers:      []solana.PrivateKey{plan.req.User},
	})
	if err == nil {
		record.Signature = sig.String()
		s.save(ctx, record, logger)

		var status *ledger.Status
		status, err = ledger.AwaitConfirmation(ctx, s.ledger, sig, s.opts.ConfirmTimeout, s.opts.PollInterval)
		if cerrors.Is(err, cerrors.ErrUnknownOutcome) {
			status, err = s.reconcile(ctx, sig, target, err)
		}
		if err == nil {
			logger.Info("swap accepted", zap.Uint64("sequence", target), zap.Stringer("signature", sig))
			return &Receipt{Signature: sig, Sequence: target, Slot: status.Slot}, nil
		}
	}

	return nil, s.rejected(ctx, err, target, logger)
}

// reconcile queries authoritative state after a confirmation timeout. A
// settled status decides the outcome. An unseen bundle stays unknown: if
// the sequence has reached target the bundle can no longer land, but the
// accepted one may still be ours, so nothing is resubmitted either way.
func (s *Submitter) reconcile(ctx context.Context, sig solana.Signature, target uint64, timeout error) (*ledger.Status, error) {
	s.count(ctx, metrics.MetricUnknownOutcomes)

	status, err := s.ledger.SignatureStatus(ctx, sig)
	if err == nil {
		switch status.Confirmation {
		case ledger.ConfirmationFailed:
			return status, status.Err
		case ledger.ConfirmationConfirmed, ledger.ConfirmationFinalized, ledger.ConfirmationProcessed:
			return status, nil
		}
	}

	var pe *cerrors.ProtocolError
	if cerrors.As(timeout, &pe) {
		details := map[string]any{"proposed_sequence": target}
		if current, rerr := s.sequence.Read(ctx); rerr == nil {
			details["current_sequence"] = current
			details["sequence_spent"] = current >= target
		}
		pe.WithDetails(details)
	}
	return nil, timeout
}

// rejected records metrics for err and fills in the sequence the ledger
// expects when the classifier could not.
func (s *Submitter) rejected(ctx context.Context, err error, target uint64, logger *zap.Logger) error {
	switch cerrors.CodeOf(err) {
	case cerrors.ErrCodeSequenceConflict:
		s.count(ctx, metrics.MetricSequenceConflicts)
		var pe *cerrors.ProtocolError
		if cerrors.As(err, &pe) && pe.Details["expected_sequence"] == nil {
			if current, rerr := s.sequence.Read(ctx); rerr == nil {
				pe.WithDetails(map[string]any{
					"expected_sequence": current + 1,
					"observed_sequence": target,
				})
			}
		}
	case cerrors.ErrCodeSlippageExceeded:
		s.count(ctx, metrics.MetricSlippageRejections)
	}

	logger.Info("swap rejected",
		zap.Uint64("sequence", target),
		zap.String("code", cerrors.CodeOf(err)),
		zap.Error(err))
	return err
}

func (s *Submitter) finish(ctx context.Context, record *storage.SubmissionModel, err error, logger *zap.Logger) {
	switch {
	case err == nil:
		record.Status = storage.SubmissionAccepted
		s.count(ctx, metrics.MetricSubmissionsAccepted)
	case cerrors.Is(err, cerrors.ErrUnknownOutcome):
		record.Status = storage.SubmissionUnknown
	default:
		record.Status = storage.SubmissionRejected
		s.count(ctx, metrics.MetricSubmissionsFailed)
	}
	if err != nil {
		record.ErrorCode = cerrors.CodeOf(err)
		record.ErrorMessage = err.Error()
	}
	s.save(ctx, record, logger)
}

func (s *Submitter) save(ctx context.Context, record *storage.SubmissionModel, logger *zap.Logger) {
	if s.store == nil {
		return
	}
	record.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, record); err != nil {
		logger.Warn("persist submission", zap.Error(err))
	}
}

func (s *Submitter) count(ctx context.Context, name string) {
	_ = s.metrics.IncrementCounter(ctx, name, 1)
}

// retryable reports whether a fresh attempt can succeed without the
// caller changing the request.
func retryable(err error) bool {
	switch cerrors.CodeOf(err) {
	case cerrors.ErrCodeSequenceConflict,
		cerrors.ErrCodeInsufficientApproval,
		cerrors.ErrCodeDelegateExpired:
		return true
	default:
		return false
	}
}
