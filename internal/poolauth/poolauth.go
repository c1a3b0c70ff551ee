// Package poolauth drives the per-pool authority lifecycle:
// Uninitialized -> Initialized -> AuthorityTransferred.
//
// A pool is protected only once its authority record exists and both of
// its vaults are owned by the derived pool_authority address. A pool that
// is initialized but not transferred still accepts swaps that bypass the
// wrapper; Status reports that degraded mode instead of hiding it.
package poolauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
)

// State is the lifecycle position of a pool.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateAuthorityTransferred
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateAuthorityTransferred:
		return "authority_transferred"
	default:
		return "uninitialized"
	}
}

// Status is the observed protection of one pool.
type Status struct {
	PoolID               solana.PublicKey
	State                State
	Initialized          bool
	AuthorityTransferred bool
	ProtectionActive     bool
	PoolAuthority        solana.PublicKey
	CreatedAt            time.Time
	VaultOwners          [2]solana.PublicKey
}

// Lifecycle submits and observes pool authority transitions.
type Lifecycle struct {
	ledger ledger.Ledger
	client *program.Client
	payer  solana.PrivateKey
	logger *zap.Logger

	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// New creates a Lifecycle paying fees from payer.
func New(l ledger.Ledger, client *program.Client, payer solana.PrivateKey) *Lifecycle {
	return &Lifecycle{
		ledger:         l,
		client:         client,
		payer:          payer,
		logger:         zap.NewNop(),
		confirmTimeout: 30 * time.Second,
		pollInterval:   500 * time.Millisecond,
	}
}

// WithLogger sets the logger.
func (lc *Lifecycle) WithLogger(logger *zap.Logger) *Lifecycle {
	lc.logger = logger
	return lc
}

// WithConfirmation sets how long and how often to poll for confirmation.
func (lc *Lifecycle) WithConfirmation(timeout, interval time.Duration) *Lifecycle {
	lc.confirmTimeout = timeout
	lc.pollInterval = interval
	return lc
}

// Initialize creates the pool's authority record. When the record already
// exists nothing is submitted and AlreadyInitialized is returned.
func (lc *Lifecycle) Initialize(ctx context.Context, pool *raydium.Pool) (solana.Signature, error) {
	addrs, err := lc.client.Deriver().ForPool(pool.ID)
	if err != nil {
		return solana.Signature{}, err
	}

	_, err = lc.ledger.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	switch {
	case err == nil:
		return solana.Signature{}, cerrors.AlreadyInitialized(fmt.Sprintf("pool authority for %s", pool.ID))
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return solana.Signature{}, fmt.Errorf("read pool authority state: %w", err)
	}

	ix, err := lc.client.InitializePoolAuthority(lc.payer.PublicKey(), pool.ID)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := lc.submit(ctx, []solana.Instruction{ix})
	if err != nil {
		return sig, err
	}
	lc.logger.Info("pool authority initialized",
		zap.Stringer("pool", pool.ID),
		zap.Stringer("state", addrs.PoolAuthorityState.Address),
		zap.Stringer("signature", sig))
	return sig, nil
}

// TransferAuthority hands ownership of both vaults to the pool_authority
// address. current must own the vaults it still controls.
func (lc *Lifecycle) TransferAuthority(ctx context.Context, pool *raydium.Pool, current solana.PrivateKey) (solana.Signature, error) {
	status, err := lc.Status(ctx, pool)
	if err != nil {
		return solana.Signature{}, err
	}
	if !status.Initialized {
		return solana.Signature{}, cerrors.NotInitialized(fmt.Sprintf("pool authority for %s", pool.ID))
	}
	if status.AuthorityTransferred {
		return solana.Signature{}, cerrors.AlreadyInitialized(fmt.Sprintf("vault authority for %s", pool.ID))
	}

	var ixs []solana.Instruction
	for i, vault := range pool.Vaults() {
		if status.VaultOwners[i].Equals(status.PoolAuthority) {
			continue
		}
		ix, err := token.NewSetAuthorityInstruction(
			token.AuthorityAccountOwner,
			status.PoolAuthority,
			vault,
			current.PublicKey(),
			nil,
		).ValidateAndBuild()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build set authority for %s: %w", vault, err)
		}
		ixs = append(ixs, ix)
	}

	sig, err := lc.submit(ctx, ixs, current)
	if err != nil {
		return sig, err
	}
	lc.logger.Info("vault authority transferred",
		zap.Stringer("pool", pool.ID),
		zap.Stringer("authority", status.PoolAuthority),
		zap.Stringer("signature", sig))
	return sig, nil
}

// Status reads the authority record and the vault owners of pool.
func (lc *Lifecycle) Status(ctx context.Context, pool *raydium.Pool) (*Status, error) {
	addrs, err := lc.client.Deriver().ForPool(pool.ID)
	if err != nil {
		return nil, err
	}

	status := &Status{PoolID: pool.ID, PoolAuthority: addrs.PoolAuthority.Address}

	acct, err := lc.ledger.GetAccount(ctx, addrs.PoolAuthorityState.Address)
	switch {
	case err == nil:
		st, err := program.DecodePoolAuthorityState(acct.Data)
		if err != nil {
			return nil, err
		}
		if !st.PoolID.Equals(pool.ID) {
			return nil, cerrors.DecodeFailed("pool authority state",
				fmt.Errorf("record names pool %s, expected %s", st.PoolID, pool.ID))
		}
		status.Initialized = true
		status.CreatedAt = time.Unix(st.CreatedAt, 0).UTC()
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return nil, fmt.Errorf("read pool authority state: %w", err)
	}

	transferred := true
	for i, vault := range pool.Vaults() {
		owner, err := lc.vaultOwner(ctx, vault)
		if err != nil {
			return nil, err
		}
		status.VaultOwners[i] = owner
		if !owner.Equals(status.PoolAuthority) {
			transferred = false
		}
	}

	status.AuthorityTransferred = status.Initialized && transferred
	status.ProtectionActive = status.AuthorityTransferred
	switch {
	case status.AuthorityTransferred:
		status.State = StateAuthorityTransferred
	case status.Initialized:
		status.State = StateInitialized
	}
	return status, nil
}

func (lc *Lifecycle) vaultOwner(ctx context.Context, vault solana.PublicKey) (solana.PublicKey, error) {
	acct, err := lc.ledger.GetAccount(ctx, vault)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("read vault %s: %w", vault, err)
	}
	if !acct.Owner.Equals(solana.TokenProgramID) {
		return solana.PublicKey{}, cerrors.DecodeFailed("vault", fmt.Errorf("%s is not a token account", vault))
	}

	var ta token.Account
	if err := bin.NewBinDecoder(acct.Data).Decode(&ta); err != nil {
		return solana.PublicKey{}, cerrors.DecodeFailed("vault", err)
	}
	return ta.Owner, nil
}

func (lc *Lifecycle) submit(ctx context.Context, ixs []solana.Instruction, extra ...solana.PrivateKey) (solana.Signature, error) {
	signers := []solana.PrivateKey{lc.payer}
	for _, k := range extra {
		if !k.PublicKey().Equals(lc.payer.PublicKey()) {
			signers = append(signers, k)
		}
	}

	sig, err := lc.ledger.Submit(ctx, ledger.Bundle{
		FeePayer:     lc.payer.PublicKey(),
		Instructions: ixs,
		Signers:      signers,
	})
	if err != nil {
		return sig, err
	}
	if _, err := ledger.AwaitConfirmation(ctx, lc.ledger, sig, lc.confirmTimeout, lc.pollInterval); err != nil {
		return sig, err
	}
	return sig, nil
}
