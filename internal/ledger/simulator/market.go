package simulator

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-continuum/internal/config"
	"github.com/lugondev/go-continuum/internal/raydium"
)

// Trader is a funded user with a source account of the pool's coin mint
// and an empty destination account of its pc mint.
type Trader struct {
	Key         solana.PrivateKey
	Source      solana.PublicKey
	Destination solana.PublicKey
}

// ListPool parses cfg, generates any mint it leaves empty and lists the
// pool with the given reserves.
func (s *Simulator) ListPool(cfg config.PoolConfig, ammProgram solana.PublicKey, coinReserve, pcReserve uint64) (*raydium.Pool, error) {
	p, err := raydium.ParsePool(cfg)
	if err != nil {
		return nil, err
	}
	if p.CoinMint.IsZero() {
		p.CoinMint = solana.NewWallet().PublicKey()
	}
	if p.PcMint.IsZero() {
		p.PcMint = solana.NewWallet().PublicKey()
	}
	if p.CoinDecimals == 0 {
		p.CoinDecimals = 9
	}
	if p.PcDecimals == 0 {
		p.PcDecimals = 9
	}
	if p.CoinVault.IsZero() || p.PcVault.IsZero() {
		return nil, fmt.Errorf("pool %s: both vaults are required", p.ID)
	}

	s.AddPool(p, ammProgram, coinReserve, pcReserve)
	return p, nil
}

// NewTrader creates a key holding coinBalance of p's coin mint.
func (s *Simulator) NewTrader(p *raydium.Pool, coinBalance uint64) (*Trader, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	t := &Trader{
		Key:         key,
		Source:      solana.NewWallet().PublicKey(),
		Destination: solana.NewWallet().PublicKey(),
	}
	s.AddTokenAccount(t.Source, p.CoinMint, key.PublicKey(), coinBalance)
	s.AddTokenAccount(t.Destination, p.PcMint, key.PublicKey(), 0)
	return t, nil
}
