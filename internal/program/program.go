// Package program builds and decodes the instructions and accounts of the
// on-chain sequencing wrapper.
package program

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/discriminator"
	"github.com/lugondev/go-continuum/pkg/frame"
	"github.com/lugondev/go-continuum/pkg/pda"
)

var (
	// WrapperProgramID is the deployed sequencing wrapper.
	WrapperProgramID = solana.MustPublicKeyFromBase58("9Mp8VkLRUR1Gw6HSXmByjM4tqabaDnoTpDpbzMvsiQ2Y")
	// RaydiumAmmV4Devnet is the AMM the wrapper forwards swaps to on devnet.
	RaydiumAmmV4Devnet = solana.MustPublicKeyFromBase58("HWy1jotHpo6UqeQxx49dpYYdQB8wj9Qk9MdxwjLvDHB8")
)

// Custom error codes raised by the wrapper program.
const (
	ErrorCodeBadSeq      uint32 = 6000
	ErrorCodeMissingBump uint32 = 6001
)

// Client builds wrapper instructions for one deployment.
type Client struct {
	programID solana.PublicKey
	deriver   *pda.Deriver
}

// New creates a Client for programID.
func New(programID solana.PublicKey) *Client {
	return &Client{
		programID: programID,
		deriver:   pda.NewDeriver(programID),
	}
}

func (c *Client) ProgramID() solana.PublicKey { return c.programID }
func (c *Client) Deriver() *pda.Deriver      { return c.deriver }

// Initialize creates the global sequence-state account at sequence 0.
func (c *Client) Initialize(payer solana.PublicKey) (solana.Instruction, error) {
	fifo, err := c.deriver.FifoState()
	if err != nil {
		return nil, fmt.Errorf("derive fifo_state: %w", err)
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: fifo.Address, IsSigner: false, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(c.programID, accounts, discriminator.Initialize.Bytes()), nil
}

type initializePoolAuthorityArgs struct {
	PoolID solana.PublicKey
}

// InitializePoolAuthority creates the per-pool authority record.
func (c *Client) InitializePoolAuthority(payer, poolID solana.PublicKey) (solana.Instruction, error) {
	state, err := c.deriver.PoolAuthorityState(poolID)
	if err != nil {
		return nil, fmt.Errorf("derive pool_authority_state: %w", err)
	}

	args, err := bin.MarshalBorsh(&initializePoolAuthorityArgs{PoolID: poolID})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: state.Address, IsSigner: false, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	data := append(discriminator.InitializePoolAuthority.Bytes(), args...)
	return solana.NewInstruction(c.programID, accounts, data), nil
}

// SwapAccounts are the fixed accounts of a wrapped swap. Remaining are the
// AMM's own accounts, forwarded untouched in the order the AMM expects.
type SwapAccounts struct {
	PoolID          solana.PublicKey
	User            solana.PublicKey
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	AmmProgram      solana.PublicKey
	Remaining       []*solana.AccountMeta
}

// SwapWithPoolAuthority frames inner under the pool-authority swap with the
// proposed sequence.
func (c *Client) SwapWithPoolAuthority(sequence uint64, inner []byte, acc SwapAccounts) (solana.Instruction, error) {
	addrs, err := c.deriver.ForPool(acc.PoolID)
	if err != nil {
		return nil, err
	}
	delegate, err := c.deriver.Delegate(acc.UserSource)
	if err != nil {
		return nil, fmt.Errorf("derive delegate: %w", err)
	}

	data, err := frame.Encode(frame.WrappedInstruction{
		Discriminator: discriminator.SwapWithPoolAuthority,
		Sequence:      sequence,
		Inner:         inner,
	})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: addrs.FifoState.Address, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.PoolAuthorityState.Address, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.PoolAuthority.Address, IsSigner: false, IsWritable: false},
		{PublicKey: delegate.Address, IsSigner: false, IsWritable: false},
		{PublicKey: acc.User, IsSigner: true, IsWritable: false},
		{PublicKey: acc.UserSource, IsSigner: false, IsWritable: true},
		{PublicKey: acc.UserDestination, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AmmProgram, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}
	accounts = append(accounts, acc.Remaining...)
	return solana.NewInstruction(c.programID, accounts, data), nil
}

// SwapWithSeq builds the delegate-only swap of the first wrapper release.
func (c *Client) SwapWithSeq(sequence uint64, inner []byte, acc SwapAccounts) (solana.Instruction, error) {
	fifo, err := c.deriver.FifoState()
	if err != nil {
		return nil, err
	}
	delegate, err := c.deriver.Delegate(acc.UserSource)
	if err != nil {
		return nil, err
	}

	data, err := frame.Encode(frame.WrappedInstruction{
		Discriminator: discriminator.SwapWithSeq,
		Sequence:      sequence,
		Inner:         inner,
	})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: fifo.Address, IsSigner: false, IsWritable: true},
		{PublicKey: delegate.Address, IsSigner: false, IsWritable: true},
		{PublicKey: acc.User, IsSigner: true, IsWritable: false},
		{PublicKey: acc.UserSource, IsSigner: false, IsWritable: true},
		{PublicKey: acc.UserDestination, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AmmProgram, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}
	accounts = append(accounts, acc.Remaining...)
	return solana.NewInstruction(c.programID, accounts, data), nil
}

// Decoded is a parsed wrapper instruction.
type Decoded struct {
	Kind discriminator.Kind

	// PoolID is set for initialize_pool_authority.
	PoolID solana.PublicKey

	// Frame is set for the swap kinds.
	Frame *frame.WrappedInstruction
}

// DecodeInstruction parses wrapper instruction data. Unknown
// discriminators and malformed arguments are MalformedFrame errors.
func DecodeInstruction(reg *discriminator.Registry, data []byte) (*Decoded, error) {
	kind := reg.Match(data)
	switch kind {
	case discriminator.KindInitialize:
		if len(data) != discriminator.Size {
			return nil, cerrors.MalformedFrame("initialize takes no arguments")
		}
		return &Decoded{Kind: kind}, nil

	case discriminator.KindInitializePoolAuthority:
		var args initializePoolAuthorityArgs
		if len(data) != discriminator.Size+32 {
			return nil, cerrors.MalformedFrame("initialize_pool_authority expects a 32-byte pool id")
		}
		if err := bin.UnmarshalBorsh(&args, data[discriminator.Size:]); err != nil {
			return nil, cerrors.MalformedFrame("initialize_pool_authority arguments").WithCause(err)
		}
		return &Decoded{Kind: kind, PoolID: args.PoolID}, nil

	case discriminator.KindSwapWithPoolAuthority, discriminator.KindSwapWithSeq:
		w, err := frame.Decode(data)
		if err != nil {
			return nil, err
		}
		return &Decoded{Kind: kind, Frame: &w}, nil

	default:
		return nil, cerrors.MalformedFrame("unknown wrapper instruction discriminator")
	}
}
