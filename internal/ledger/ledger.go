// Package ledger defines the operations the client needs from the external
// ledger: reading raw account bytes at an offset, submitting an atomic
// bundle of instructions, and polling its confirmation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the subset of on-chain account state the client inspects.
type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Bundle is an ordered list of instructions that the ledger executes
// all-or-nothing.
type Bundle struct {
	FeePayer     solana.PublicKey
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// Confirmation is the progress of a submitted bundle.
type Confirmation int

const (
	// ConfirmationNotFound means the ledger has no record of the signature.
	ConfirmationNotFound Confirmation = iota
	ConfirmationProcessed
	ConfirmationConfirmed
	ConfirmationFinalized
	// ConfirmationFailed means the bundle landed and was rolled back.
	ConfirmationFailed
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmationProcessed:
		return "processed"
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationFinalized:
		return "finalized"
	case ConfirmationFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// Status is the ledger's answer for one signature.
type Status struct {
	Signature    solana.Signature
	Confirmation Confirmation
	Slot         uint64
	// Err is the classified failure when Confirmation is ConfirmationFailed.
	Err error
}

// Settled reports whether the bundle reached a terminal state.
func (s *Status) Settled() bool {
	switch s.Confirmation {
	case ConfirmationConfirmed, ConfirmationFinalized, ConfirmationFailed:
		return true
	default:
		return false
	}
}

type Reader interface {
	// ReadAt returns length bytes of address's data starting at offset.
	ReadAt(ctx context.Context, address solana.PublicKey, offset, length uint64) ([]byte, error)
	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error)
}

type Submitter interface {
	// Submit sends bundle. A returned error means the bundle was rejected
	// before landing; the signature of a landed bundle is always returned.
	Submit(ctx context.Context, bundle Bundle) (solana.Signature, error)
}

type StatusReader interface {
	SignatureStatus(ctx context.Context, sig solana.Signature) (*Status, error)
}

// Ledger is the full set of ledger operations.
type Ledger interface {
	Reader
	Submitter
	StatusReader
}

// AwaitConfirmation polls sig every interval until it settles. A failed
// bundle returns its classified error. When timeout elapses first the
// outcome is unknown: the bundle may still land, so callers must query
// state before retrying.
func AwaitConfirmation(ctx context.Context, l StatusReader, sig solana.Signature, timeout, interval time.Duration) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := l.SignatureStatus(ctx, sig)
		switch {
		case err != nil:
			lastErr = err
		case status.Confirmation == ConfirmationFailed:
			return status, status.Err
		case status.Settled():
			return status, nil
		}

		select {
		case <-ctx.Done():
			cause := ctx.Err()
			if lastErr != nil {
				cause = fmt.Errorf("%w (last poll error: %v)", cause, lastErr)
			}
			return nil, cerrors.UnknownOutcome(sig.String(), cause)
		case <-ticker.C:
		}
	}
}
