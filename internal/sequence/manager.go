// Package sequence reads the authoritative sequence counter and tracks the
// client's view of it.
//
// The counter is advisory on the client side: the program accepts a wrapped
// swap only when its embedded sequence equals the stored value plus one,
// so every proposal must come from a fresh read.
package sequence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/pkg/view"
)

// Manager reads the sequence-state account.
type Manager struct {
	reader  ledger.Reader
	address solana.PublicKey
	logger  *zap.Logger
}

// NewManager creates a Manager for the sequence-state account at address.
func NewManager(reader ledger.Reader, address solana.PublicKey) *Manager {
	return &Manager{
		reader:  reader,
		address: address,
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(logger *zap.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Address returns the sequence-state account.
func (m *Manager) Address() solana.PublicKey {
	return m.address
}

// Read returns the current authoritative sequence.
func (m *Manager) Read(ctx context.Context) (uint64, error) {
	raw, err := m.reader.ReadAt(ctx, m.address, view.SequenceOffset, view.SequenceLength)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return 0, cerrors.NotInitialized("sequence state").WithCause(err)
		}
		return 0, fmt.Errorf("read sequence state: %w", err)
	}
	if len(raw) != view.SequenceLength {
		return 0, cerrors.DecodeFailed("sequence state",
			fmt.Errorf("expected %d bytes, got %d", view.SequenceLength, len(raw)))
	}

	seq := binary.LittleEndian.Uint64(raw)
	m.logger.Debug("sequence read", zap.Uint64("sequence", seq))
	return seq, nil
}

// ProposeNext returns a fresh read plus one. It never reuses an earlier
// read, so callers retrying after a conflict get an up-to-date proposal.
func (m *Manager) ProposeNext(ctx context.Context) (uint64, error) {
	seq, err := m.Read(ctx)
	if err != nil {
		return 0, err
	}
	return seq + 1, nil
}
