package poolauth

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger/simulator"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
)

type fixture struct {
	sim       *simulator.Simulator
	lifecycle *Lifecycle
	pool      *raydium.Pool
	authority solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	cfg := raydium.DevnetTestPool()
	cfg.AmmAuthority = authority.PublicKey().String()

	sim := simulator.New(program.WrapperProgramID, simulator.WithClock(func() time.Time {
		return time.Unix(1_700_000_000, 0)
	}))
	p, err := sim.ListPool(cfg, program.RaydiumAmmV4Devnet, 1_000_000, 1_000_000)
	require.NoError(t, err)

	lc := New(sim, program.New(program.WrapperProgramID), payer).
		WithConfirmation(time.Second, time.Millisecond)
	return &fixture{sim: sim, lifecycle: lc, pool: p, authority: authority}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.lifecycle.Status(ctx, f.pool)
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, status.State)
	assert.False(t, status.Initialized)
	assert.False(t, status.ProtectionActive)
	assert.Equal(t, f.authority.PublicKey(), status.VaultOwners[0])

	_, err = f.lifecycle.TransferAuthority(ctx, f.pool, f.authority)
	assert.ErrorIs(t, err, cerrors.ErrNotInitialized)

	_, err = f.lifecycle.Initialize(ctx, f.pool)
	require.NoError(t, err)

	status, err = f.lifecycle.Status(ctx, f.pool)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, status.State)
	assert.True(t, status.Initialized)
	assert.False(t, status.AuthorityTransferred)
	assert.False(t, status.ProtectionActive, "un-transferred pool is degraded")
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), status.CreatedAt)

	_, err = f.lifecycle.TransferAuthority(ctx, f.pool, f.authority)
	require.NoError(t, err)

	status, err = f.lifecycle.Status(ctx, f.pool)
	require.NoError(t, err)
	assert.Equal(t, StateAuthorityTransferred, status.State)
	assert.True(t, status.ProtectionActive)
	assert.Equal(t, status.PoolAuthority, status.VaultOwners[0])
	assert.Equal(t, status.PoolAuthority, status.VaultOwners[1])

	_, err = f.lifecycle.TransferAuthority(ctx, f.pool, f.authority)
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)
}

func TestInitializeTwiceLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.lifecycle.Initialize(ctx, f.pool)
	require.NoError(t, err)

	addrs, err := program.New(program.WrapperProgramID).Deriver().ForPool(f.pool.ID)
	require.NoError(t, err)
	before, err := f.sim.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	require.NoError(t, err)

	_, err = f.lifecycle.Initialize(ctx, f.pool)
	require.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)
	assert.False(t, cerrors.Retryable(err))

	after, err := f.sim.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	require.NoError(t, err)
	assert.Equal(t, before.Data, after.Data)
}

func TestTransferAuthorityRequiresVaultOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.lifecycle.Initialize(ctx, f.pool)
	require.NoError(t, err)

	impostor, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = f.lifecycle.TransferAuthority(ctx, f.pool, impostor)
	assert.ErrorIs(t, err, cerrors.ErrTransactionFailed)

	status, err := f.lifecycle.Status(ctx, f.pool)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, status.State)
	assert.Equal(t, f.authority.PublicKey(), status.VaultOwners[1])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "authority_transferred", StateAuthorityTransferred.String())
}
