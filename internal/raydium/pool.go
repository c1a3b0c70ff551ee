// Package raydium holds the AMM reference data the wrapper forwards to: the
// per-pool account set of an AMM v4 swap and the swap payload.
package raydium

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-continuum/internal/config"
	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/frame"
)

// SwapAccountCount is the number of accounts an AMM v4 swap takes.
const SwapAccountCount = 18

// Pool is the read-only account set of one AMM v4 pool.
type Pool struct {
	Name         string
	ID           solana.PublicKey
	AmmAuthority solana.PublicKey
	OpenOrders   solana.PublicKey
	TargetOrders solana.PublicKey
	CoinVault    solana.PublicKey
	PcVault      solana.PublicKey
	CoinMint     solana.PublicKey
	PcMint       solana.PublicKey
	CoinDecimals uint8
	PcDecimals   uint8

	SerumProgram     solana.PublicKey
	SerumMarket      solana.PublicKey
	SerumBids        solana.PublicKey
	SerumAsks        solana.PublicKey
	SerumEventQueue  solana.PublicKey
	SerumCoinVault   solana.PublicKey
	SerumPcVault     solana.PublicKey
	SerumVaultSigner solana.PublicKey
}

// ParsePool converts base58 reference data. Empty optional addresses stay
// zero; the id is required.
func ParsePool(cfg config.PoolConfig) (*Pool, error) {
	p := &Pool{
		Name:         cfg.Name,
		CoinDecimals: cfg.CoinDecimals,
		PcDecimals:   cfg.PcDecimals,
	}

	id, err := solana.PublicKeyFromBase58(cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("pool id %q: %w", cfg.ID, err)
	}
	p.ID = id

	fields := []struct {
		name string
		src  string
		dst  *solana.PublicKey
	}{
		{"amm_authority", cfg.AmmAuthority, &p.AmmAuthority},
		{"open_orders", cfg.OpenOrders, &p.OpenOrders},
		{"target_orders", cfg.TargetOrders, &p.TargetOrders},
		{"coin_vault", cfg.CoinVault, &p.CoinVault},
		{"pc_vault", cfg.PcVault, &p.PcVault},
		{"coin_mint", cfg.CoinMint, &p.CoinMint},
		{"pc_mint", cfg.PcMint, &p.PcMint},
		{"serum_program", cfg.SerumProgram, &p.SerumProgram},
		{"serum_market", cfg.SerumMarket, &p.SerumMarket},
		{"serum_bids", cfg.SerumBids, &p.SerumBids},
		{"serum_asks", cfg.SerumAsks, &p.SerumAsks},
		{"serum_event_queue", cfg.SerumEventQueue, &p.SerumEventQueue},
		{"serum_coin_vault", cfg.SerumCoinVault, &p.SerumCoinVault},
		{"serum_pc_vault", cfg.SerumPcVault, &p.SerumPcVault},
		{"serum_vault_signer", cfg.SerumVaultSigner, &p.SerumVaultSigner},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(f.src)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %s: %w", cfg.ID, f.name, err)
		}
		*f.dst = key
	}
	return p, nil
}

// AccountMetas lists the swap accounts in the order the AMM expects. The
// final slot carries the authority the wrapper signs for.
func (p *Pool) AccountMetas(userSource, userDestination, authority solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: p.ID, IsSigner: false, IsWritable: true},
		{PublicKey: p.AmmAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: p.OpenOrders, IsSigner: false, IsWritable: true},
		{PublicKey: p.TargetOrders, IsSigner: false, IsWritable: true},
		{PublicKey: p.CoinVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.PcVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumProgram, IsSigner: false, IsWritable: false},
		{PublicKey: p.SerumMarket, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumBids, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumAsks, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumEventQueue, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumCoinVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumPcVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.SerumVaultSigner, IsSigner: false, IsWritable: false},
		{PublicKey: userSource, IsSigner: false, IsWritable: true},
		{PublicKey: userDestination, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: false, IsWritable: false},
	}
}

// Vaults returns the coin and pc vaults.
func (p *Pool) Vaults() [2]solana.PublicKey {
	return [2]solana.PublicKey{p.CoinVault, p.PcVault}
}

// SwapData builds the inner AMM payload.
func SwapData(amountIn, minAmountOut uint64) []byte {
	return frame.SwapPayload{AmountIn: amountIn, MinAmountOut: minAmountOut}.Encode()
}

// Registry indexes the configured pools by id.
type Registry struct {
	pools map[solana.PublicKey]*Pool
}

// NewRegistry parses every pool in cfgs.
func NewRegistry(cfgs []config.PoolConfig) (*Registry, error) {
	r := &Registry{pools: make(map[solana.PublicKey]*Pool, len(cfgs))}
	for _, cfg := range cfgs {
		p, err := ParsePool(cfg)
		if err != nil {
			return nil, err
		}
		r.pools[p.ID] = p
	}
	return r, nil
}

// Get returns the pool or a PoolNotFound error.
func (r *Registry) Get(id solana.PublicKey) (*Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return nil, cerrors.PoolNotFound(id.String())
	}
	return p, nil
}

func (r *Registry) Len() int {
	return len(r.pools)
}

// List returns the pools sorted by id.
func (r *Registry) List() []*Pool {
	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// DevnetTestPool is the devnet pool the wrapper was exercised against.
func DevnetTestPool() config.PoolConfig {
	return config.PoolConfig{
		ID:               "FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ",
		Name:             "devnet-test",
		AmmAuthority:     "DbQqP6ehDYmeYjcBaMRuA8tAJY1EjDUz9DpwSLjaQqfC",
		OpenOrders:       "F1FaUZU9789aQxxZqKLqizUoNyazQxgHKw2bonADEbFs",
		TargetOrders:     "EuFFuq1RpVsBFbvnFS2Bgth9SNsxCN3AG4P1BUawR8yy",
		CoinVault:        "GsACB9Gm6QJyBYCvv1B5TJdpYPJP5PsnF7UKuLDNZLd6",
		PcVault:          "BnCejGtupYD8kVpWF1E7xmFnHAK2kUmX4qvsJEiuVXjj",
		SerumProgram:     "EoTcMgcDRTJVZDMZWBoU6rhYHZfkNTVEAfz3uUJRcYGj",
		SerumMarket:      "HeAap3XbNZHBaHsv6A9FXmMLKN2zWinsPxVwJVBiRGPQ",
		SerumBids:        "4soHYNjT3TXoibaLJQXNFQ1MJMoZRpFCx1pWLKJKC1Dh",
		SerumAsks:        "2s2SgtShuDtwviHVv2KYMtPs99scGGUXS1SwN83meprv",
		SerumEventQueue:  "HtGARZDjDyd9fR2AmvmVhr2xeoNVuxADj7DhsU1oREt",
		SerumCoinVault:   "EqYU43ZTap2beYX8uptDn3Kn8d6jFyH6mb6udLrkv6EF",
		SerumPcVault:     "Dm6dhx94CyK5WWQ6YZxk8z3gp4WqKEwPrLEHEDBCcwyZ",
		SerumVaultSigner: "DuhnGJky7vEzgZTz2F4cV4fDEw2n9QstLyww576J5qSV",
	}
}
