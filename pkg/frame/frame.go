// Package frame encodes and decodes the wrapped instruction that carries an
// inner AMM instruction plus its sequencing metadata.
//
// Wire layout (all integers little-endian, unsigned):
//
//	discriminator (8) || sequence (8) || inner_len (4) || inner_payload (inner_len)
//
// Decode is strict: inner_len must equal the number of remaining bytes.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/discriminator"
)

const (
	sequenceOffset = discriminator.Size
	innerLenOffset = sequenceOffset + 8

	// HeaderSize is the size of the fixed part of a frame.
	HeaderSize = innerLenOffset + 4

	// MaxInnerLen is the largest payload that fits the u32 length field.
	MaxInnerLen = math.MaxUint32
)

// WrappedInstruction is the outer frame around an inner AMM instruction.
type WrappedInstruction struct {
	Discriminator discriminator.Discriminator
	Sequence      uint64
	Inner         []byte
}

// Size returns the encoded length of w.
func (w WrappedInstruction) Size() int {
	return HeaderSize + len(w.Inner)
}

// Encode serializes w. It fails only when the inner payload does not fit
// the u32 length field.
func Encode(w WrappedInstruction) ([]byte, error) {
	if uint64(len(w.Inner)) > MaxInnerLen {
		return nil, fmt.Errorf("inner payload too large: %d bytes", len(w.Inner))
	}

	buf := make([]byte, w.Size())
	copy(buf[:sequenceOffset], w.Discriminator[:])
	binary.LittleEndian.PutUint64(buf[sequenceOffset:innerLenOffset], w.Sequence)
	binary.LittleEndian.PutUint32(buf[innerLenOffset:HeaderSize], uint32(len(w.Inner)))
	copy(buf[HeaderSize:], w.Inner)
	return buf, nil
}

// MustEncode is like Encode but panics on oversized payloads.
func MustEncode(w WrappedInstruction) []byte {
	data, err := Encode(w)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses data into a WrappedInstruction. Any disagreement between the
// declared inner length and the actual remaining bytes is a MalformedFrame
// error; no partial result is returned.
func Decode(data []byte) (WrappedInstruction, error) {
	if len(data) < HeaderSize {
		return WrappedInstruction{}, cerrors.MalformedFrame(
			fmt.Sprintf("frame shorter than header: %d < %d bytes", len(data), HeaderSize),
		).WithDetails(map[string]any{
			"length": len(data),
		})
	}

	declared := binary.LittleEndian.Uint32(data[innerLenOffset:HeaderSize])
	remaining := len(data) - HeaderSize
	if uint64(declared) != uint64(remaining) {
		return WrappedInstruction{}, cerrors.MalformedFrame(
			fmt.Sprintf("inner_len %d disagrees with %d remaining bytes", declared, remaining),
		).WithDetails(map[string]any{
			"declared":  declared,
			"remaining": remaining,
		})
	}

	var w WrappedInstruction
	copy(w.Discriminator[:], data[:sequenceOffset])
	w.Sequence = binary.LittleEndian.Uint64(data[sequenceOffset:innerLenOffset])
	w.Inner = make([]byte, remaining)
	copy(w.Inner, data[HeaderSize:])
	return w, nil
}

// DecodeKind decodes data and checks that its discriminator is the pinned
// identifier for kind in reg.
func DecodeKind(reg *discriminator.Registry, kind discriminator.Kind, data []byte) (WrappedInstruction, error) {
	w, err := Decode(data)
	if err != nil {
		return w, err
	}

	if got := reg.Match(w.Discriminator[:]); got != kind {
		return WrappedInstruction{}, cerrors.MalformedFrame(
			fmt.Sprintf("unexpected discriminator %s for %s", w.Discriminator, kind),
		).WithDetails(map[string]any{
			"expected_kind": kind.String(),
			"observed_kind": got.String(),
		})
	}
	return w, nil
}
