// Package view provides zero-copy accessors over the wrapper program's
// account and event buffers.
package view

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-continuum/pkg/discriminator"
)

var (
	ErrInvalidBuffer        = errors.New("invalid buffer size")
	ErrInvalidDiscriminator = errors.New("unexpected account discriminator")
)

const (
	// SequenceOffset is where the u64 sequence lives inside the
	// sequence-state account.
	SequenceOffset = discriminator.Size
	// SequenceLength is the width of the sequence field.
	SequenceLength = 8

	FifoStateSize          = discriminator.Size + 8
	PoolAuthorityStateSize = discriminator.Size + 32 + 8 + 1
	SwapEventSize          = discriminator.Size + 8 + 32 + 32
)

// FifoStateView reads the sequence-state account.
type FifoStateView struct {
	buffer []byte
}

// NewFifoStateView validates size and discriminator of buffer.
func NewFifoStateView(buffer []byte) (*FifoStateView, error) {
	if len(buffer) < FifoStateSize {
		return nil, ErrInvalidBuffer
	}
	if !discriminator.FifoStateAccount.HasPrefix(buffer) {
		return nil, ErrInvalidDiscriminator
	}
	return &FifoStateView{buffer: buffer}, nil
}

func (v *FifoStateView) Sequence() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[SequenceOffset : SequenceOffset+SequenceLength])
}

// PoolAuthorityStateView reads a per-pool authority record.
type PoolAuthorityStateView struct {
	buffer []byte
}

// NewPoolAuthorityStateView validates size and discriminator of buffer.
func NewPoolAuthorityStateView(buffer []byte) (*PoolAuthorityStateView, error) {
	if len(buffer) < PoolAuthorityStateSize {
		return nil, ErrInvalidBuffer
	}
	if !discriminator.PoolAuthorityStateAccount.HasPrefix(buffer) {
		return nil, ErrInvalidDiscriminator
	}
	return &PoolAuthorityStateView{buffer: buffer}, nil
}

func (v *PoolAuthorityStateView) PoolID() solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&v.buffer[8]))
}

func (v *PoolAuthorityStateView) CreatedAt() int64 {
	return int64(binary.LittleEndian.Uint64(v.buffer[40:48]))
}

func (v *PoolAuthorityStateView) FifoEnforced() bool {
	return v.buffer[48] != 0
}

// EventView exposes the discriminator and body of an emitted event.
type EventView struct {
	buffer        []byte
	discriminator discriminator.Discriminator
}

func NewEventView(buffer []byte) (*EventView, error) {
	d, ok := discriminator.FromBytes(buffer)
	if !ok {
		return nil, ErrInvalidBuffer
	}

	return &EventView{
		buffer:        buffer,
		discriminator: d,
	}, nil
}

func (v *EventView) Discriminator() discriminator.Discriminator {
	return v.discriminator
}

func (v *EventView) Data() []byte {
	if len(v.buffer) <= discriminator.Size {
		return nil
	}
	return v.buffer[discriminator.Size:]
}

func (v *EventView) FullData() []byte {
	return v.buffer
}

// SwapEventView reads a SwapEvent: seq || user || pool_id.
type SwapEventView struct {
	*EventView
}

func NewSwapEventView(buffer []byte) (*SwapEventView, error) {
	if len(buffer) < SwapEventSize {
		return nil, ErrInvalidBuffer
	}
	ev, err := NewEventView(buffer)
	if err != nil {
		return nil, err
	}
	if !ev.discriminator.Equals(discriminator.SwapEvent) {
		return nil, ErrInvalidDiscriminator
	}
	return &SwapEventView{EventView: ev}, nil
}

func (v *SwapEventView) Sequence() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[8:16])
}

func (v *SwapEventView) User() solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&v.buffer[16]))
}

func (v *SwapEventView) PoolID() solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&v.buffer[48]))
}
