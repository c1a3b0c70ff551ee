package solana

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/pkg/log"
)

// Custom error codes of the programs a wrapped swap touches.
const (
	ammErrExceededSlippage   uint32 = 30
	tokenErrInsufficientFund uint32 = 1
	tokenErrOwnerMismatch    uint32 = 4
	systemErrAccountInUse    uint32 = 0
)

// Classifier maps the logs of a failed bundle to a protocol error kind by
// the program that failed first and its custom code.
type Classifier struct {
	wrapper solana.PublicKey
	amm     solana.PublicKey
	parser  *log.Parser
}

// NewClassifier creates a classifier for one wrapper deployment and the AMM
// it forwards to.
func NewClassifier(wrapper, amm solana.PublicKey) *Classifier {
	return &Classifier{
		wrapper: wrapper,
		amm:     amm,
		parser:  log.NewParser(),
	}
}

// Classify returns the protocol error for logs. fallback describes the
// failure when the logs name none.
func (c *Classifier) Classify(logs []string, fallback string) error {
	failure := c.parser.FirstFailure(logs)
	if failure == nil {
		if alreadyInUse(logs) {
			return cerrors.AlreadyInitialized("account")
		}
		return cerrors.TransactionFailed(fallback)
	}

	details := map[string]any{"program": failure.ProgramID}
	if failure.CustomCode == nil {
		if alreadyInUse(logs) {
			return cerrors.AlreadyInitialized("account").WithDetails(details)
		}
		return cerrors.TransactionFailed(failure.Reason).WithDetails(details)
	}
	code := *failure.CustomCode
	details["custom_code"] = code

	var pe *cerrors.ProtocolError
	switch {
	case failure.ProgramID == c.wrapper.String() && code == program.ErrorCodeBadSeq:
		pe = cerrors.NewError(cerrors.ErrCodeSequenceConflict, "wrapper rejected the proposed sequence")
	case failure.ProgramID == c.amm.String() && code == ammErrExceededSlippage:
		pe = cerrors.NewError(cerrors.ErrCodeSlippageExceeded, "realized output below min_amount_out")
	case failure.ProgramID == solana.TokenProgramID.String() && code == tokenErrInsufficientFund:
		pe = cerrors.NewError(cerrors.ErrCodeInsufficientApproval, "transfer exceeds the delegated amount")
	case failure.ProgramID == solana.TokenProgramID.String() && code == tokenErrOwnerMismatch:
		pe = cerrors.NewError(cerrors.ErrCodeDelegateExpired, "delegate authority no longer valid")
	case failure.ProgramID == solana.SystemProgramID.String() && code == systemErrAccountInUse:
		pe = cerrors.AlreadyInitialized("account")
	default:
		pe = cerrors.TransactionFailed(fmt.Sprintf("program %s: %s", failure.ProgramID, failure.Reason))
	}
	return pe.WithDetails(details)
}

func alreadyInUse(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "already in use") {
			return true
		}
	}
	return false
}
