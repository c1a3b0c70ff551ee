package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lugondev/go-continuum/internal/delegate"
	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
	"github.com/lugondev/go-continuum/internal/sequence"
	"github.com/lugondev/go-continuum/pkg/log"
)

const (
	reserve = 1_000_000_000_000_000
	balance = 1_000_000_000_000
)

type fixture struct {
	sim    *Simulator
	client *program.Client
	pool   *raydium.Pool
	trader *Trader
}

func newFixture(t *testing.T, seq uint64) *fixture {
	t.Helper()

	sim := New(program.WrapperProgramID, WithClock(func() time.Time {
		return time.Unix(1_700_000_000, 0)
	}))
	p, err := sim.ListPool(raydium.DevnetTestPool(), program.RaydiumAmmV4Devnet, reserve, reserve)
	require.NoError(t, err)
	trader, err := sim.NewTrader(p, balance)
	require.NoError(t, err)
	require.NoError(t, sim.SetSequence(seq))

	f := &fixture{sim: sim, client: program.New(program.WrapperProgramID), pool: p, trader: trader}

	ix, err := f.client.InitializePoolAuthority(trader.Key.PublicKey(), p.ID)
	require.NoError(t, err)
	_, err = sim.Submit(context.Background(), f.bundle(ix))
	require.NoError(t, err)
	return f
}

func (f *fixture) bundle(ixs ...solana.Instruction) ledger.Bundle {
	return ledger.Bundle{
		FeePayer:     f.trader.Key.PublicKey(),
		Instructions: ixs,
		Signers:      []solana.PrivateKey{f.trader.Key},
	}
}

func (f *fixture) swapIx(t *testing.T, trader *Trader, seq, amountIn, minOut uint64) solana.Instruction {
	t.Helper()
	ix, err := f.buildSwapIx(trader, seq, amountIn, minOut)
	require.NoError(t, err)
	return ix
}

func (f *fixture) buildSwapIx(trader *Trader, seq, amountIn, minOut uint64) (solana.Instruction, error) {
	authority, err := f.client.Deriver().PoolAuthority(f.pool.ID)
	if err != nil {
		return nil, err
	}
	return f.client.SwapWithPoolAuthority(seq, raydium.SwapData(amountIn, minOut), program.SwapAccounts{
		PoolID:          f.pool.ID,
		User:            trader.Key.PublicKey(),
		UserSource:      trader.Source,
		UserDestination: trader.Destination,
		AmmProgram:      program.RaydiumAmmV4Devnet,
		Remaining:       f.pool.AccountMetas(trader.Source, trader.Destination, authority.Address),
	})
}

func (f *fixture) swapBundle(t *testing.T, trader *Trader, seq, approve, amountIn, minOut uint64) ledger.Bundle {
	t.Helper()
	b, err := f.buildSwapBundle(trader, seq, approve, amountIn, minOut)
	require.NoError(t, err)
	return b
}

// buildSwapBundle reports errors instead of failing the test so that it can
// run off the test goroutine.
func (f *fixture) buildSwapBundle(trader *Trader, seq, approve, amountIn, minOut uint64) (ledger.Bundle, error) {
	grant, err := delegate.NewGrant(f.client.Deriver(), trader.Key.PublicKey(), trader.Source, f.pool.CoinMint, f.pool.CoinDecimals, approve)
	if err != nil {
		return ledger.Bundle{}, err
	}
	approveIx, err := grant.ApproveInstruction()
	if err != nil {
		return ledger.Bundle{}, err
	}
	swapIx, err := f.buildSwapIx(trader, seq, amountIn, minOut)
	if err != nil {
		return ledger.Bundle{}, err
	}
	return ledger.Bundle{
		FeePayer:     trader.Key.PublicKey(),
		Instructions: []solana.Instruction{approveIx, swapIx},
		Signers:      []solana.PrivateKey{trader.Key},
	}, nil
}

func (f *fixture) sequence(t *testing.T) uint64 {
	t.Helper()
	fifo, err := f.client.Deriver().FifoState()
	require.NoError(t, err)
	seq, err := sequence.NewManager(f.sim, fifo.Address).Read(context.Background())
	require.NoError(t, err)
	return seq
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sim := New(program.WrapperProgramID)
	client := program.New(program.WrapperProgramID)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ix, err := client.Initialize(payer.PublicKey())
	require.NoError(t, err)
	bundle := ledger.Bundle{FeePayer: payer.PublicKey(), Instructions: []solana.Instruction{ix}, Signers: []solana.PrivateKey{payer}}

	_, err = sim.Submit(ctx, bundle)
	require.NoError(t, err)

	fifo, err := client.Deriver().FifoState()
	require.NoError(t, err)
	before, err := sim.GetAccount(ctx, fifo.Address)
	require.NoError(t, err)
	st, err := program.DecodeFifoState(before.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.Seq)

	sig, err := sim.Submit(ctx, bundle)
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)

	after, err := sim.GetAccount(ctx, fifo.Address)
	require.NoError(t, err)
	assert.Equal(t, before.Data, after.Data)

	status, err := sim.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, ledger.ConfirmationFailed, status.Confirmation)
}

func TestInitializePoolAuthorityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	addrs, err := f.client.Deriver().ForPool(f.pool.ID)
	require.NoError(t, err)
	before, err := f.sim.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	require.NoError(t, err)

	st, err := program.DecodePoolAuthorityState(before.Data)
	require.NoError(t, err)
	assert.Equal(t, f.pool.ID, st.PoolID)
	assert.Equal(t, int64(1_700_000_000), st.CreatedAt)
	assert.True(t, st.FifoEnforced)

	ix, err := f.client.InitializePoolAuthority(f.trader.Key.PublicKey(), f.pool.ID)
	require.NoError(t, err)
	_, err = f.sim.Submit(ctx, f.bundle(ix))
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)

	after, err := f.sim.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	require.NoError(t, err)
	assert.Equal(t, before.Data, after.Data)
}

func TestSwapAdvancesSequenceAndRejectsSecondProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	second, err := f.sim.NewTrader(f.pool, balance)
	require.NoError(t, err)

	sig, err := f.sim.Submit(ctx, f.swapBundle(t, f.trader, 6, 100_000_000_000, 100_000_000_000, 90_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), f.sequence(t))

	status, err := f.sim.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, ledger.ConfirmationConfirmed, status.Confirmation)

	dst, ok := f.sim.TokenAccount(f.trader.Destination)
	require.True(t, ok)
	assert.GreaterOrEqual(t, dst.Amount, uint64(90_000_000_000))

	src, ok := f.sim.TokenAccount(f.trader.Source)
	require.True(t, ok)
	assert.Equal(t, uint64(balance-100_000_000_000), src.Amount)
	assert.Nil(t, src.Delegate)
	assert.Zero(t, src.DelegatedAmount)

	events := log.NewParser().ExtractSwapEvents(f.sim.Logs(sig))
	require.Len(t, events, 1)
	assert.Equal(t, uint64(6), events[0].Sequence)
	assert.Equal(t, f.trader.Key.PublicKey(), events[0].User)
	assert.Equal(t, f.pool.ID, events[0].PoolID)

	_, err = f.sim.Submit(ctx, f.swapBundle(t, second, 6, 100_000_000_000, 100_000_000_000, 90_000_000_000))
	require.ErrorIs(t, err, cerrors.ErrSequenceConflict)
	details := cerrors.DetailsOf(err)
	assert.Equal(t, uint64(7), details["expected_sequence"])
	assert.Equal(t, uint64(6), details["observed_sequence"])
	assert.Equal(t, uint64(6), f.sequence(t))
}

func TestSlippageRevertsWholeBundle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	before, err := f.sim.Dump()
	require.NoError(t, err)

	sig, err := f.sim.Submit(ctx, f.swapBundle(t, f.trader, 6, 100_000_000_000, 100_000_000_000, 100_000_000_000))
	require.ErrorIs(t, err, cerrors.ErrSlippageExceeded)
	assert.True(t, cerrors.Retryable(err))

	after, err := f.sim.Dump()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(5), f.sequence(t))

	failure := log.NewParser().FirstFailure(f.sim.Logs(sig))
	require.NotNil(t, failure)
	assert.Equal(t, program.RaydiumAmmV4Devnet.String(), failure.ProgramID)
	require.NotNil(t, failure.CustomCode)
	assert.Equal(t, ammErrExceededSlippage, *failure.CustomCode)
}

func TestSwapApprovalChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("approval below amount", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.sim.Submit(ctx, f.swapBundle(t, f.trader, 1, 50, 100, 1))
		assert.ErrorIs(t, err, cerrors.ErrInsufficientApproval)
		assert.Equal(t, uint64(0), f.sequence(t))
	})

	t.Run("no approval", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.sim.Submit(ctx, f.bundle(f.swapIx(t, f.trader, 1, 100, 1)))
		assert.ErrorIs(t, err, cerrors.ErrDelegateExpired)
	})

	t.Run("approval does not survive the swap", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.sim.Submit(ctx, f.swapBundle(t, f.trader, 1, 1_000, 100, 1))
		require.NoError(t, err)

		_, err = f.sim.Submit(ctx, f.bundle(f.swapIx(t, f.trader, 2, 100, 1)))
		assert.ErrorIs(t, err, cerrors.ErrDelegateExpired)
		assert.Equal(t, uint64(1), f.sequence(t))
	})
}

func TestSubmitRequiresSigners(t *testing.T) {
	f := newFixture(t, 0)
	bundle := f.swapBundle(t, f.trader, 1, 100, 100, 1)
	bundle.Signers = nil

	_, err := f.sim.Submit(context.Background(), bundle)
	assert.ErrorIs(t, err, cerrors.ErrInvalidRequest)
}

func TestHiddenStatuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.sim.HideStatuses(true)

	sig, err := f.sim.Submit(ctx, f.swapBundle(t, f.trader, 1, 100, 100, 1))
	require.NoError(t, err)

	status, err := f.sim.SignatureStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, ledger.ConfirmationNotFound, status.Confirmation)
	assert.Equal(t, uint64(1), f.sequence(t))
}

func TestConcurrentSubmittersAreGapless(t *testing.T) {
	const submitters = 8
	ctx := context.Background()
	f := newFixture(t, 0)

	fifo, err := f.client.Deriver().FifoState()
	require.NoError(t, err)
	manager := sequence.NewManager(f.sim, fifo.Address)

	var (
		mu       sync.Mutex
		accepted = make(map[uint64]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < submitters; i++ {
		trader, err := f.sim.NewTrader(f.pool, balance)
		require.NoError(t, err)

		g.Go(func() error {
			for {
				target, err := manager.ProposeNext(gctx)
				if err != nil {
					return err
				}

				bundle, err := f.buildSwapBundle(trader, target, 1_000, 1_000, 1)
				if err != nil {
					return err
				}
				_, err = f.sim.Submit(gctx, bundle)
				if cerrors.Is(err, cerrors.ErrSequenceConflict) {
					continue
				}
				if err != nil {
					return err
				}

				mu.Lock()
				accepted[target]++
				mu.Unlock()
				return nil
			}
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, uint64(submitters), f.sequence(t))
	require.Len(t, accepted, submitters)
	for seq := uint64(1); seq <= submitters; seq++ {
		assert.Equal(t, 1, accepted[seq], "sequence %d", seq)
	}
}

func TestReadAtBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 42)
	fifo, err := f.client.Deriver().FifoState()
	require.NoError(t, err)

	data, err := f.sim.ReadAt(ctx, fifo.Address, 8, 100)
	require.NoError(t, err)
	assert.Len(t, data, 8)

	data, err = f.sim.ReadAt(ctx, fifo.Address, 64, 8)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = f.sim.ReadAt(ctx, solana.NewWallet().PublicKey(), 8, 8)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, uint64(0), quote(0, 0, 0, DefaultFeeBps))
	out := quote(reserve, reserve, 100_000_000_000, DefaultFeeBps)
	assert.Greater(t, out, uint64(99_000_000_000))
	assert.Less(t, out, uint64(100_000_000_000))
}
