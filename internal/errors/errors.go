// Package errors defines the error kinds of the continuum sequencing protocol.
//
// Every protocol failure is a *ProtocolError carrying a stable Code, a
// message, an optional cause and a Details map with the values a caller
// needs to decide between retrying and aborting (expected vs observed
// sequence, requested vs approved amount, ...). Errors compare by Code, so
// errors.Is(err, ErrSequenceConflict) matches any sequence conflict.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the continuum protocol.
const (
	ErrCodeAlreadyInitialized   = "ALREADY_INITIALIZED"
	ErrCodeSequenceConflict     = "SEQUENCE_CONFLICT"
	ErrCodeSlippageExceeded     = "SLIPPAGE_EXCEEDED"
	ErrCodeMalformedFrame       = "MALFORMED_FRAME"
	ErrCodeInsufficientApproval = "INSUFFICIENT_APPROVAL"
	ErrCodeDelegateExpired      = "DELEGATE_EXPIRED"
	ErrCodeUnknownOutcome       = "UNKNOWN_OUTCOME"
	ErrCodeNotInitialized       = "NOT_INITIALIZED"
	ErrCodePoolNotFound         = "POOL_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeTransactionFailed    = "TRANSACTION_FAILED"
	ErrCodeDecodeFailed         = "DECODE_FAILED"
	ErrCodeCustom               = "CUSTOM"
)

// ProtocolError represents an error in the continuum protocol.
type ProtocolError struct {
	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause adds a cause to the error.
func (e *ProtocolError) WithCause(cause error) *ProtocolError {
	e.Cause = cause
	return e
}

// WithDetails merges details into the error.
func (e *ProtocolError) WithDetails(details map[string]any) *ProtocolError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Retryable reports whether the failure may succeed on a later attempt
// after the caller refreshes its view (sequence, approval, parameters).
// UnknownOutcome is not retryable as such: state must be queried first.
func (e *ProtocolError) Retryable() bool {
	switch e.Code {
	case ErrCodeSequenceConflict,
		ErrCodeSlippageExceeded,
		ErrCodeInsufficientApproval,
		ErrCodeDelegateExpired:
		return true
	default:
		return false
	}
}

// NewError creates a new ProtocolError.
func NewError(code, message string) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is comparisons. Never mutate these; use the
// constructors below to build errors with details.
var (
	ErrAlreadyInitialized   = NewError(ErrCodeAlreadyInitialized, "already initialized")
	ErrSequenceConflict     = NewError(ErrCodeSequenceConflict, "sequence conflict")
	ErrSlippageExceeded     = NewError(ErrCodeSlippageExceeded, "slippage exceeded")
	ErrMalformedFrame       = NewError(ErrCodeMalformedFrame, "malformed frame")
	ErrInsufficientApproval = NewError(ErrCodeInsufficientApproval, "insufficient approval")
	ErrDelegateExpired      = NewError(ErrCodeDelegateExpired, "delegate expired")
	ErrUnknownOutcome       = NewError(ErrCodeUnknownOutcome, "unknown outcome")
	ErrNotInitialized       = NewError(ErrCodeNotInitialized, "not initialized")
	ErrPoolNotFound         = NewError(ErrCodePoolNotFound, "pool not found")
	ErrInvalidRequest       = NewError(ErrCodeInvalidRequest, "invalid request")
	ErrTransactionFailed    = NewError(ErrCodeTransactionFailed, "transaction failed")
)

// AlreadyInitialized creates an error for a repeated one-time setup.
func AlreadyInitialized(what string) *ProtocolError {
	return NewError(ErrCodeAlreadyInitialized, fmt.Sprintf("%s already initialized", what))
}

// SequenceConflict creates an error for a proposal that no longer equals
// authoritative current + 1.
func SequenceConflict(expected, observed uint64) *ProtocolError {
	return NewError(ErrCodeSequenceConflict,
		fmt.Sprintf("proposed sequence %d, ledger expects %d", observed, expected),
	).WithDetails(map[string]any{
		"expected_sequence": expected,
		"observed_sequence": observed,
	})
}

// SlippageExceeded creates an error for a realized output below the minimum.
func SlippageExceeded(minAmountOut, realized uint64) *ProtocolError {
	return NewError(ErrCodeSlippageExceeded,
		fmt.Sprintf("realized output %d below minimum %d", realized, minAmountOut),
	).WithDetails(map[string]any{
		"min_amount_out":  minAmountOut,
		"realized_output": realized,
	})
}

// MalformedFrame creates an error for a wrapped instruction that does not
// follow the wire layout.
func MalformedFrame(reason string) *ProtocolError {
	return NewError(ErrCodeMalformedFrame, reason)
}

// InsufficientApproval creates an error for a grant smaller than the
// requested spend.
func InsufficientApproval(requested, approved uint64) *ProtocolError {
	return NewError(ErrCodeInsufficientApproval,
		fmt.Sprintf("requested %d exceeds approved %d", requested, approved),
	).WithDetails(map[string]any{
		"requested_amount": requested,
		"approved_amount":  approved,
	})
}

// DelegateExpired creates an error for a grant that was already consumed
// or revoked.
func DelegateExpired(delegate string) *ProtocolError {
	return NewError(ErrCodeDelegateExpired,
		fmt.Sprintf("delegate %s has no live approval", delegate),
	).WithDetails(map[string]any{
		"delegate": delegate,
	})
}

// UnknownOutcome creates an error for a submission whose confirmation
// timed out.
func UnknownOutcome(signature string, cause error) *ProtocolError {
	return NewError(ErrCodeUnknownOutcome,
		fmt.Sprintf("confirmation of %s timed out", signature),
	).WithCause(cause).WithDetails(map[string]any{
		"signature": signature,
	})
}

// NotInitialized creates an error for state that must exist but does not.
func NotInitialized(what string) *ProtocolError {
	return NewError(ErrCodeNotInitialized, fmt.Sprintf("%s not initialized", what))
}

// PoolNotFound creates an error for an unknown pool id.
func PoolNotFound(poolID string) *ProtocolError {
	return NewError(ErrCodePoolNotFound, fmt.Sprintf("pool %s not found", poolID))
}

// InvalidRequest creates an error for rejected caller input.
func InvalidRequest(reason string) *ProtocolError {
	return NewError(ErrCodeInvalidRequest, reason)
}

// TransactionFailed creates an error for a bundle rejected for a reason the
// protocol does not classify.
func TransactionFailed(reason string) *ProtocolError {
	return NewError(ErrCodeTransactionFailed, reason)
}

// DecodeFailed creates an error for decoding failures.
func DecodeFailed(what string, cause error) *ProtocolError {
	return NewError(ErrCodeDecodeFailed, fmt.Sprintf("failed to decode %s", what)).WithCause(cause)
}

// Custom creates a custom error with the given message.
func Custom(message string) *ProtocolError {
	return NewError(ErrCodeCustom, message)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Retryable reports whether any ProtocolError in err's chain is retryable.
func Retryable(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// CodeOf returns the code of the first ProtocolError in err's chain, or the
// empty string.
func CodeOf(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsKind reports whether err's chain holds a ProtocolError with code.
func IsKind(err error, code string) bool {
	return CodeOf(err) == code
}

// DetailsOf returns the details of the first ProtocolError in err's chain.
func DetailsOf(err error) map[string]any {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Details
	}
	return nil
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
