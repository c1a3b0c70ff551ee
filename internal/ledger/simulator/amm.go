package simulator

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/raydium"
	"github.com/lugondev/go-continuum/pkg/frame"
)

// ammErrExceededSlippage is the AMM v4 error raised when the output falls
// below the caller's minimum.
const ammErrExceededSlippage uint32 = 30

type pool struct {
	cfg     *raydium.Pool
	program solana.PublicKey
	feeBps  uint64
}

// AddPool lists an AMM pool whose vaults hold the given reserves. The vaults
// are created owned by the pool's AMM authority.
func (s *Simulator) AddPool(p *raydium.Pool, ammProgram solana.PublicKey, coinReserve, pcReserve uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.mints[p.CoinMint]; !ok {
		s.state.mints[p.CoinMint] = &token.Mint{Decimals: p.CoinDecimals, IsInitialized: true}
	}
	if _, ok := s.state.mints[p.PcMint]; !ok {
		s.state.mints[p.PcMint] = &token.Mint{Decimals: p.PcDecimals, IsInitialized: true}
	}
	s.state.tokens[p.CoinVault] = &token.Account{Mint: p.CoinMint, Owner: p.AmmAuthority, Amount: coinReserve, State: token.Initialized}
	s.state.tokens[p.PcVault] = &token.Account{Mint: p.PcMint, Owner: p.AmmAuthority, Amount: pcReserve, State: token.Initialized}
	s.pools[p.ID] = &pool{cfg: p, program: ammProgram, feeBps: DefaultFeeBps}
}

// quote returns the constant-product output for amountIn after the fee.
func quote(reserveIn, reserveOut, amountIn, feeBps uint64) uint64 {
	in := new(big.Int).SetUint64(amountIn)
	in.Mul(in, big.NewInt(int64(10_000-feeBps)))
	in.Quo(in, big.NewInt(10_000))

	num := new(big.Int).Mul(in, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), in)
	if den.Sign() == 0 {
		return 0
	}
	return num.Quo(num, den).Uint64()
}

// ammSwap moves amountIn from source into the pool, spending delegate's
// approval, and pays the output into dest.
func (e *execution) ammSwap(poolID, sourceAddr, destAddr, delegate solana.PublicKey, payload frame.SwapPayload) (uint64, error) {
	p, ok := e.sim.pools[poolID]
	if !ok {
		return 0, cerrors.PoolNotFound(poolID.String())
	}
	e.logf("Program %s invoke [2]", p.program)

	source, ok := e.sim.state.tokens[sourceAddr]
	if !ok {
		return 0, cerrors.TransactionFailed(fmt.Sprintf("token account %s not found", sourceAddr))
	}
	dest, ok := e.sim.state.tokens[destAddr]
	if !ok {
		return 0, cerrors.TransactionFailed(fmt.Sprintf("token account %s not found", destAddr))
	}

	var vaultIn, vaultOut *token.Account
	switch {
	case source.Mint.Equals(p.cfg.CoinMint) && dest.Mint.Equals(p.cfg.PcMint):
		vaultIn, vaultOut = e.sim.state.tokens[p.cfg.CoinVault], e.sim.state.tokens[p.cfg.PcVault]
	case source.Mint.Equals(p.cfg.PcMint) && dest.Mint.Equals(p.cfg.CoinMint):
		vaultIn, vaultOut = e.sim.state.tokens[p.cfg.PcVault], e.sim.state.tokens[p.cfg.CoinVault]
	default:
		return 0, tokenError(tokenErrMintMismatch, "swap accounts do not match the pool mints")
	}

	if source.Delegate == nil || !source.Delegate.Equals(delegate) {
		return 0, programError(solana.TokenProgramID, tokenErrOwnerMismatch,
			cerrors.DelegateExpired(delegate.String()))
	}
	if source.DelegatedAmount < payload.AmountIn {
		return 0, programError(solana.TokenProgramID, tokenErrInsufficientFunds,
			cerrors.InsufficientApproval(payload.AmountIn, source.DelegatedAmount))
	}
	if source.Amount < payload.AmountIn {
		return 0, tokenError(tokenErrInsufficientFunds, "insufficient funds")
	}

	out := quote(vaultIn.Amount, vaultOut.Amount, payload.AmountIn, p.feeBps)
	if out < payload.MinAmountOut {
		e.logf("Program log: Error: exceeds desired slippage limit")
		return 0, programError(p.program, ammErrExceededSlippage,
			cerrors.SlippageExceeded(payload.MinAmountOut, out))
	}
	if out == 0 || out >= vaultOut.Amount {
		return 0, cerrors.TransactionFailed("swap output exhausts the pool")
	}

	source.Amount -= payload.AmountIn
	source.DelegatedAmount -= payload.AmountIn
	vaultIn.Amount += payload.AmountIn
	vaultOut.Amount -= out
	dest.Amount += out

	e.logf("Program %s success", p.program)
	return out, nil
}
