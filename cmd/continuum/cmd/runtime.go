package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/config"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/ledger/simulator"
	"github.com/lugondev/go-continuum/internal/poolauth"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/internal/raydium"
	csolana "github.com/lugondev/go-continuum/internal/solana"
	"github.com/lugondev/go-continuum/internal/submit"
)

// Reserves each pool is listed with in simulate mode.
const simulatedReserve = 1_000_000_000_000_000

// runtime is the ledger and reference data a command operates on.
type runtime struct {
	ledger ledger.Ledger
	rpc    *csolana.Client
	sim    *simulator.Simulator
	client *program.Client
	amm    solana.PublicKey
	pools  *raydium.Registry
	wallet *csolana.Wallet
}

func newRuntime(ctx context.Context) (*runtime, error) {
	wrapper, err := solana.PublicKeyFromBase58(cfg.Program.WrapperID)
	if err != nil {
		return nil, fmt.Errorf("invalid program.wrapper_id: %w", err)
	}
	amm, err := solana.PublicKeyFromBase58(cfg.Program.AmmID)
	if err != nil {
		return nil, fmt.Errorf("invalid program.amm_id: %w", err)
	}

	poolCfgs, err := config.LoadPools(cfg.PoolsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("pools file not found, using the devnet test pool", zap.String("path", cfg.PoolsFile))
		poolCfgs = []config.PoolConfig{raydium.DevnetTestPool()}
	case err != nil:
		return nil, err
	}

	rt := &runtime{client: program.New(wrapper), amm: amm}

	if simulate {
		for i := range poolCfgs {
			fillSimulatedMints(&poolCfgs[i])
		}
	}
	if rt.pools, err = raydium.NewRegistry(poolCfgs); err != nil {
		return nil, err
	}

	wallet, werr := csolana.LoadWallet(keypairPath())
	if simulate {
		if werr != nil {
			wallet = csolana.NewWallet()
		}
		rt.wallet = wallet
		if err := rt.bootstrap(ctx, poolCfgs); err != nil {
			return nil, err
		}
		return rt, nil
	}

	if werr == nil {
		rt.wallet = wallet
	} else {
		logger.Debug("no wallet loaded", zap.Error(werr))
	}
	rt.rpc = csolana.NewClient(cfg.Solana.GetRPCEndpoint(), cfg.Solana.Commitment, csolana.NewClassifier(wrapper, amm)).
		WithLogger(logger.Named("rpc"))
	rt.ledger = rt.rpc
	return rt, nil
}

// bootstrap lists every pool in a fresh simulator with an initialized
// sequence and pool authority.
func (rt *runtime) bootstrap(ctx context.Context, poolCfgs []config.PoolConfig) error {
	rt.sim = simulator.New(rt.client.ProgramID(), simulator.WithLogger(logger.Named("simulator")))
	rt.ledger = rt.sim
	if err := rt.sim.SetSequence(0); err != nil {
		return err
	}

	lc := rt.lifecycle()
	for _, pc := range poolCfgs {
		p, err := rt.sim.ListPool(pc, rt.amm, simulatedReserve, simulatedReserve)
		if err != nil {
			return err
		}
		if _, err := lc.Initialize(ctx, p); err != nil {
			return fmt.Errorf("initialize pool authority for %s: %w", p.ID, err)
		}
	}
	logger.Info("simulated ledger ready",
		zap.Int("pools", rt.pools.Len()),
		zap.Stringer("wallet", rt.wallet.PublicKey()))
	return nil
}

func fillSimulatedMints(pc *config.PoolConfig) {
	if pc.CoinMint == "" {
		pc.CoinMint = solana.NewWallet().PublicKey().String()
	}
	if pc.PcMint == "" {
		pc.PcMint = solana.NewWallet().PublicKey().String()
	}
	if pc.CoinDecimals == 0 {
		pc.CoinDecimals = 9
	}
	if pc.PcDecimals == 0 {
		pc.PcDecimals = 9
	}
}

func (rt *runtime) requireWallet() (*csolana.Wallet, error) {
	if rt.wallet == nil {
		return nil, fmt.Errorf("a keypair is required: set relayer.keypair or --keypair")
	}
	return rt.wallet, nil
}

func (rt *runtime) pool(id string) (*raydium.Pool, error) {
	key, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return nil, fmt.Errorf("invalid pool id: %w", err)
	}
	return rt.pools.Get(key)
}

func (rt *runtime) lifecycle() *poolauth.Lifecycle {
	var payer solana.PrivateKey
	if rt.wallet != nil {
		payer = rt.wallet.PrivateKey()
	}
	return poolauth.New(rt.ledger, rt.client, payer).
		WithLogger(logger.Named("poolauth")).
		WithConfirmation(cfg.Relayer.ConfirmTimeout, cfg.Relayer.PollInterval)
}

func (rt *runtime) submitter() (*submit.Submitter, error) {
	s, err := submit.New(rt.ledger, rt.client, rt.pools, submit.Options{
		MaxAttempts:     cfg.Relayer.MaxAttempts,
		ConfirmTimeout:  cfg.Relayer.ConfirmTimeout,
		PollInterval:    cfg.Relayer.PollInterval,
		InitialInterval: submit.DefaultOptions().InitialInterval,
		MaxInterval:     submit.DefaultOptions().MaxInterval,
	})
	if err != nil {
		return nil, err
	}
	return s.WithAmmProgram(rt.amm).WithLogger(logger.Named("submit")), nil
}
