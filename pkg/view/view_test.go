package view

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-continuum/pkg/discriminator"
)

var (
	testPool = solana.MustPublicKeyFromBase58("FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ")
	testUser = solana.MustPublicKeyFromBase58("GsACB9Gm6QJyBYCvv1B5TJdpYPJP5PsnF7UKuLDNZLd6")
)

func createFifoStateBuffer(seq uint64) []byte {
	buf := make([]byte, FifoStateSize)
	copy(buf, discriminator.FifoStateAccount[:])
	binary.LittleEndian.PutUint64(buf[8:16], seq)
	return buf
}

func createPoolAuthorityBuffer() []byte {
	// Layout: discriminator(8) + pool_id(32) + created_at(8) + fifo_enforced(1)
	buf := make([]byte, PoolAuthorityStateSize)
	copy(buf, discriminator.PoolAuthorityStateAccount[:])
	copy(buf[8:40], testPool[:])
	binary.LittleEndian.PutUint64(buf[40:48], uint64(1700000000))
	buf[48] = 1
	return buf
}

func TestFifoStateView(t *testing.T) {
	v, err := NewFifoStateView(createFifoStateBuffer(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := v.Sequence(); got != 5 {
		t.Errorf("Expected sequence 5, got %d", got)
	}
}

func TestFifoStateViewRejects(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		want   error
	}{
		{"short", make([]byte, FifoStateSize-1), ErrInvalidBuffer},
		{"wrong discriminator", append(discriminator.PoolAuthorityStateAccount.Bytes(), make([]byte, 8)...), ErrInvalidDiscriminator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFifoStateView(tt.buffer); err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPoolAuthorityStateView(t *testing.T) {
	v, err := NewPoolAuthorityStateView(createPoolAuthorityBuffer())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !v.PoolID().Equals(testPool) {
		t.Errorf("Expected pool %s, got %s", testPool, v.PoolID())
	}
	if v.CreatedAt() != 1700000000 {
		t.Errorf("Expected created_at 1700000000, got %d", v.CreatedAt())
	}
	if !v.FifoEnforced() {
		t.Error("Expected fifo_enforced")
	}

	if _, err := NewPoolAuthorityStateView(createFifoStateBuffer(1)); err != ErrInvalidBuffer {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}
}

func TestSwapEventView(t *testing.T) {
	buf := make([]byte, SwapEventSize)
	copy(buf, discriminator.SwapEvent[:])
	binary.LittleEndian.PutUint64(buf[8:16], 6)
	copy(buf[16:48], testUser[:])
	copy(buf[48:80], testPool[:])

	v, err := NewSwapEventView(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.Sequence() != 6 {
		t.Errorf("Expected sequence 6, got %d", v.Sequence())
	}
	if !v.User().Equals(testUser) {
		t.Errorf("Expected user %s, got %s", testUser, v.User())
	}
	if !v.PoolID().Equals(testPool) {
		t.Errorf("Expected pool %s, got %s", testPool, v.PoolID())
	}
	if len(v.Data()) != SwapEventSize-8 {
		t.Errorf("Expected data length %d, got %d", SwapEventSize-8, len(v.Data()))
	}

	copy(buf, discriminator.FifoStateAccount[:])
	if _, err := NewSwapEventView(buf); err != ErrInvalidDiscriminator {
		t.Errorf("Expected ErrInvalidDiscriminator, got %v", err)
	}
}

func TestEventViewShortBuffer(t *testing.T) {
	if _, err := NewEventView([]byte{1, 2, 3}); err != ErrInvalidBuffer {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}
}
