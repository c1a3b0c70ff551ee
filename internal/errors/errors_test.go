package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := SequenceConflict(6, 7)

	assert.True(t, Is(err, ErrSequenceConflict))
	assert.False(t, Is(err, ErrSlippageExceeded))

	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, Is(wrapped, ErrSequenceConflict))
	assert.Equal(t, ErrCodeSequenceConflict, CodeOf(wrapped))
}

func TestDetailsCarryContext(t *testing.T) {
	details := DetailsOf(SequenceConflict(6, 7))
	assert.Equal(t, uint64(6), details["expected_sequence"])
	assert.Equal(t, uint64(7), details["observed_sequence"])

	details = DetailsOf(InsufficientApproval(100, 50))
	assert.Equal(t, uint64(100), details["requested_amount"])
	assert.Equal(t, uint64(50), details["approved_amount"])

	details = DetailsOf(SlippageExceeded(90, 80))
	assert.Equal(t, uint64(90), details["min_amount_out"])
	assert.Equal(t, uint64(80), details["realized_output"])
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"already initialized", AlreadyInitialized("pool"), false},
		{"sequence conflict", SequenceConflict(1, 2), true},
		{"slippage", SlippageExceeded(1, 0), true},
		{"malformed", MalformedFrame("bad"), false},
		{"insufficient approval", InsufficientApproval(2, 1), true},
		{"delegate expired", DelegateExpired("x"), true},
		{"unknown outcome", UnknownOutcome("sig", io.EOF), false},
		{"plain error", io.EOF, false},
		{"wrapped", Wrap(SequenceConflict(1, 2), "ctx"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestUnwrapCause(t *testing.T) {
	err := UnknownOutcome("sig", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), ErrCodeUnknownOutcome)
}

func TestSentinelsAreNotMutatedByConstructors(t *testing.T) {
	_ = SequenceConflict(1, 2)
	assert.Nil(t, ErrSequenceConflict.Details)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", SlippageExceeded(90, 80))
	assert.True(t, IsKind(err, ErrCodeSlippageExceeded))
	assert.False(t, IsKind(err, ErrCodeSequenceConflict))
	assert.False(t, IsKind(nil, ErrCodeSlippageExceeded))
}
