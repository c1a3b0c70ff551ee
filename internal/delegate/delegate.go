// Package delegate manages the bounded, single-use spending approval that
// lets the wrapper's delegate identity drive a swap on the owner's behalf.
//
// A Grant moves NoDelegate -> Approved -> Consumed and never back: the
// approval and the swap that consumes it are placed in the same atomic
// bundle, and the program revokes the delegate once the swap has run.
package delegate

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/pda"
)

// State is the lifecycle position of a grant.
type State int

const (
	StateNoDelegate State = iota
	StateApproved
	StateConsumed
)

func (s State) String() string {
	switch s {
	case StateApproved:
		return "approved"
	case StateConsumed:
		return "consumed"
	default:
		return "no_delegate"
	}
}

// Grant is a bounded approval of Amount base units of Source to Delegate.
type Grant struct {
	Owner    solana.PublicKey
	Source   solana.PublicKey
	Mint     solana.PublicKey
	Decimals uint8
	Delegate pda.Derivation
	Amount   uint64

	mu    sync.Mutex
	state State
}

// NewGrant derives the delegate for source and prepares an approval of
// exactly amount.
func NewGrant(d *pda.Deriver, owner, source, mint solana.PublicKey, decimals uint8, amount uint64) (*Grant, error) {
	if amount == 0 {
		return nil, cerrors.InvalidRequest("approval amount must be positive")
	}

	delegate, err := d.Delegate(source)
	if err != nil {
		return nil, fmt.Errorf("derive delegate: %w", err)
	}

	return &Grant{
		Owner:    owner,
		Source:   source,
		Mint:     mint,
		Decimals: decimals,
		Delegate: delegate,
		Amount:   amount,
	}, nil
}

// State returns the grant's lifecycle position.
func (g *Grant) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ApproveInstruction builds the checked approval naming the derived
// delegate with the exact ceiling. Building it moves the grant to Approved;
// a grant can be approved only once.
func (g *Grant) ApproveInstruction() (solana.Instruction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateNoDelegate {
		return nil, cerrors.DelegateExpired(g.Delegate.Address.String()).WithDetails(map[string]any{
			"state": g.state.String(),
		})
	}

	ix, err := token.NewApproveCheckedInstruction(
		g.Amount,
		g.Decimals,
		g.Source,
		g.Mint,
		g.Delegate.Address,
		g.Owner,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build approve: %w", err)
	}

	g.state = StateApproved
	return ix, nil
}

// RevokeInstruction builds an owner-signed revoke, used to clear an
// approval left behind by a bundle that never landed.
func (g *Grant) RevokeInstruction() (solana.Instruction, error) {
	ix, err := token.NewRevokeInstruction(g.Source, g.Owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build revoke: %w", err)
	}
	return ix, nil
}

// Consume spends the grant for a swap of amountIn.
func (g *Grant) Consume(amountIn uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateApproved {
		return cerrors.DelegateExpired(g.Delegate.Address.String()).WithDetails(map[string]any{
			"state": g.state.String(),
		})
	}
	if amountIn > g.Amount {
		return cerrors.InsufficientApproval(amountIn, g.Amount)
	}

	g.state = StateConsumed
	return nil
}

// Bundle returns the approval followed by swap, consuming the grant for
// amountIn. The two instructions must be submitted together. An amountIn
// above the ceiling is rejected before anything is approved.
func (g *Grant) Bundle(amountIn uint64, swap solana.Instruction) ([]solana.Instruction, error) {
	if amountIn > g.Amount {
		return nil, cerrors.InsufficientApproval(amountIn, g.Amount)
	}
	approve, err := g.ApproveInstruction()
	if err != nil {
		return nil, err
	}
	if err := g.Consume(amountIn); err != nil {
		return nil, err
	}
	return []solana.Instruction{approve, swap}, nil
}
