package program

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/discriminator"
)

// FifoState is the global sequence-state account.
type FifoState struct {
	Seq uint64
}

// PoolAuthorityState is the per-pool authority record.
type PoolAuthorityState struct {
	PoolID       solana.PublicKey
	CreatedAt    int64
	FifoEnforced bool
}

// SwapEvent is emitted for every accepted wrapped swap.
type SwapEvent struct {
	Seq    uint64
	User   solana.PublicKey
	PoolID solana.PublicKey
}

func encodeWithDiscriminator(d discriminator.Discriminator, v any) ([]byte, error) {
	body, err := bin.MarshalBorsh(v)
	if err != nil {
		return nil, err
	}
	return append(d.Bytes(), body...), nil
}

func decodeWithDiscriminator(d discriminator.Discriminator, what string, data []byte, v any) error {
	if !d.HasPrefix(data) {
		return cerrors.DecodeFailed(what, fmt.Errorf("discriminator mismatch"))
	}
	if err := bin.UnmarshalBorsh(v, data[discriminator.Size:]); err != nil {
		return cerrors.DecodeFailed(what, err)
	}
	return nil
}

// Encode serializes the account with its discriminator.
func (s *FifoState) Encode() ([]byte, error) {
	return encodeWithDiscriminator(discriminator.FifoStateAccount, s)
}

func DecodeFifoState(data []byte) (*FifoState, error) {
	var s FifoState
	if err := decodeWithDiscriminator(discriminator.FifoStateAccount, "FifoState", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode serializes the account with its discriminator.
func (s *PoolAuthorityState) Encode() ([]byte, error) {
	return encodeWithDiscriminator(discriminator.PoolAuthorityStateAccount, s)
}

func DecodePoolAuthorityState(data []byte) (*PoolAuthorityState, error) {
	var s PoolAuthorityState
	if err := decodeWithDiscriminator(discriminator.PoolAuthorityStateAccount, "PoolAuthorityState", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode serializes the event with its discriminator.
func (e *SwapEvent) Encode() ([]byte, error) {
	return encodeWithDiscriminator(discriminator.SwapEvent, e)
}

func DecodeSwapEvent(data []byte) (*SwapEvent, error) {
	var e SwapEvent
	if err := decodeWithDiscriminator(discriminator.SwapEvent, "SwapEvent", data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
