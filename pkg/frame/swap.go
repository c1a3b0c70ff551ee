package frame

import (
	"encoding/binary"
	"fmt"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/pkg/discriminator"
)

// SwapPayloadSize is the size of an AMM swap payload.
const SwapPayloadSize = discriminator.Size + 8 + 8

// SwapPayload is the AMM swap instruction carried as an opaque inner
// payload: discriminator (8) || amount_in (8) || min_amount_out (8).
type SwapPayload struct {
	AmountIn     uint64
	MinAmountOut uint64
}

// Encode serializes p with the pinned AMM swap discriminator.
func (p SwapPayload) Encode() []byte {
	buf := make([]byte, SwapPayloadSize)
	copy(buf[:8], discriminator.AmmSwap[:])
	binary.LittleEndian.PutUint64(buf[8:16], p.AmountIn)
	binary.LittleEndian.PutUint64(buf[16:24], p.MinAmountOut)
	return buf
}

// DecodeSwapPayload parses an AMM swap payload.
func DecodeSwapPayload(data []byte) (SwapPayload, error) {
	if len(data) != SwapPayloadSize {
		return SwapPayload{}, cerrors.MalformedFrame(
			fmt.Sprintf("swap payload must be %d bytes, got %d", SwapPayloadSize, len(data)),
		)
	}
	if !discriminator.AmmSwap.HasPrefix(data) {
		return SwapPayload{}, cerrors.MalformedFrame("swap payload has unexpected discriminator")
	}

	return SwapPayload{
		AmountIn:     binary.LittleEndian.Uint64(data[8:16]),
		MinAmountOut: binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

// NewSwap frames an AMM swap under the wrapped swap instruction.
func NewSwap(sequence uint64, p SwapPayload) WrappedInstruction {
	return WrappedInstruction{
		Discriminator: discriminator.SwapWithPoolAuthority,
		Sequence:      sequence,
		Inner:         p.Encode(),
	}
}
