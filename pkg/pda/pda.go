// Package pda derives the wrapper program's authority addresses from seeds.
//
// Derivation is pure and reproducible by anyone holding the seeds: the
// candidate for bump b is SHA-256(seeds || b || program_id ||
// "ProgramDerivedAddress"). A candidate that collides with an address that
// already has an independent identity (a point on the ed25519 curve, or an
// address the caller reports as bound) is skipped and the search advances
// to the next bump, from 255 down to 1 as the runtime's own search does.
package pda

import (
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

var (
	ErrTooManySeeds    = errors.New("too many seeds")
	ErrSeedTooLong     = errors.New("max seed length exceeded")
	ErrNoViableAddress = errors.New("no viable program address for seeds")
)

// Purpose tags a derivation with the seed prefix the program expects.
type Purpose string

const (
	PurposeFifoState          Purpose = "fifo_state"
	PurposePoolAuthorityState Purpose = "pool_authority_state"
	PurposePoolAuthority      Purpose = "pool_authority"
	PurposeDelegate           Purpose = "delegate"
)

// Derivation is a derived address together with the bump that proves it.
type Derivation struct {
	Purpose Purpose
	Address solana.PublicKey
	Bump    uint8
}

// Seeds returns the full signer seed list, bump included.
func (d Derivation) Seeds(extra ...[]byte) [][]byte {
	seeds := make([][]byte, 0, len(extra)+2)
	seeds = append(seeds, []byte(d.Purpose))
	seeds = append(seeds, extra...)
	seeds = append(seeds, []byte{d.Bump})
	return seeds
}

// OccupiedFunc reports whether a candidate address is already bound to an
// independent identity.
type OccupiedFunc func(solana.PublicKey) bool

// Deriver derives addresses owned by a single program.
type Deriver struct {
	ProgramID solana.PublicKey

	// Occupied is consulted for every off-curve candidate. Nil means only
	// on-curve candidates count as collisions.
	Occupied OccupiedFunc
}

// NewDeriver creates a Deriver for programID.
func NewDeriver(programID solana.PublicKey) *Deriver {
	return &Deriver{ProgramID: programID}
}

// WithOccupied sets the collision predicate.
func (d *Deriver) WithOccupied(fn OccupiedFunc) *Deriver {
	d.Occupied = fn
	return d
}

// Derive searches bumps 255..1 for the first viable candidate for
// (purpose, seeds...).
func (d *Deriver) Derive(purpose Purpose, seeds ...[]byte) (Derivation, error) {
	all := make([][]byte, 0, len(seeds)+2)
	all = append(all, []byte(purpose))
	all = append(all, seeds...)

	if len(all)+1 > MaxSeeds {
		return Derivation{}, ErrTooManySeeds
	}
	for _, s := range all {
		if len(s) > MaxSeedLength {
			return Derivation{}, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(s))
		}
	}

	bump := []byte{math.MaxUint8}
	all = append(all, bump)
	for i := 0; i < math.MaxUint8; i++ {
		candidate, err := solana.CreateProgramAddress(all, d.ProgramID)
		if err == nil && (d.Occupied == nil || !d.Occupied(candidate)) {
			return Derivation{Purpose: purpose, Address: candidate, Bump: bump[0]}, nil
		}
		bump[0]--
	}

	return Derivation{}, fmt.Errorf("%w: purpose=%s", ErrNoViableAddress, purpose)
}

// FifoState derives the global sequence-state address.
func (d *Deriver) FifoState() (Derivation, error) {
	return d.Derive(PurposeFifoState)
}

// PoolAuthorityState derives the per-pool authority state address.
func (d *Deriver) PoolAuthorityState(poolID solana.PublicKey) (Derivation, error) {
	return d.Derive(PurposePoolAuthorityState, poolID.Bytes())
}

// PoolAuthority derives the protective authority that signs for a pool's vaults.
func (d *Deriver) PoolAuthority(poolID solana.PublicKey) (Derivation, error) {
	return d.Derive(PurposePoolAuthority, poolID.Bytes())
}

// Delegate derives the delegate that receives the bounded spend approval
// over ownerTokenAccount.
func (d *Deriver) Delegate(ownerTokenAccount solana.PublicKey) (Derivation, error) {
	return d.Derive(PurposeDelegate, ownerTokenAccount.Bytes())
}

// PoolAddresses groups every derivation needed to operate on one pool.
type PoolAddresses struct {
	FifoState          Derivation
	PoolAuthorityState Derivation
	PoolAuthority      Derivation
}

// ForPool derives the sequence-state, pool-authority-state and
// pool-authority addresses of poolID.
func (d *Deriver) ForPool(poolID solana.PublicKey) (PoolAddresses, error) {
	var (
		out PoolAddresses
		err error
	)
	if out.FifoState, err = d.FifoState(); err != nil {
		return out, err
	}
	if out.PoolAuthorityState, err = d.PoolAuthorityState(poolID); err != nil {
		return out, err
	}
	if out.PoolAuthority, err = d.PoolAuthority(poolID); err != nil {
		return out, err
	}
	return out, nil
}
