package simulator

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/pkg/discriminator"
	"github.com/lugondev/go-continuum/pkg/frame"
)

// Token program error codes surfaced in logs.
const (
	tokenErrInsufficientFunds    uint32 = 1
	tokenErrMintMismatch         uint32 = 3
	tokenErrOwnerMismatch        uint32 = 4
	tokenErrMintDecimalsMismatch uint32 = 18
)

type execution struct {
	sim     *Simulator
	signers map[solana.PublicKey]bool
	logs    []string
}

func (e *execution) logf(format string, args ...any) {
	e.logs = append(e.logs, fmt.Sprintf(format, args...))
}

func (e *execution) execute(ix solana.Instruction) error {
	programID := ix.ProgramID()
	e.logf("Program %s invoke [1]", programID)

	data, err := ix.Data()
	if err != nil {
		return cerrors.MalformedFrame("instruction data").WithCause(err)
	}

	switch {
	case programID.Equals(solana.TokenProgramID):
		err = e.executeToken(ix.Accounts(), data)
	case programID.Equals(e.sim.programID):
		err = e.executeWrapper(ix.Accounts(), data)
	default:
		err = cerrors.TransactionFailed(fmt.Sprintf("program %s is not deployed", programID))
	}
	if err != nil {
		return err
	}

	e.logf("Program %s success", programID)
	return nil
}

func (e *execution) signed(meta *solana.AccountMeta) bool {
	return meta != nil && meta.IsSigner && e.signers[meta.PublicKey]
}

func (e *execution) executeToken(accounts []*solana.AccountMeta, data []byte) error {
	inst, err := token.DecodeInstruction(accounts, data)
	if err != nil {
		return cerrors.MalformedFrame("token instruction").WithCause(err)
	}

	switch ix := inst.Impl.(type) {
	case *token.ApproveChecked:
		e.logf("Program log: Instruction: ApproveChecked")
		acct, err := e.ownedTokenAccount(ix.GetSourceAccount(), ix.GetOwnerAccount())
		if err != nil {
			return err
		}
		mint, ok := e.sim.state.mints[ix.GetMintAccount().PublicKey]
		if !ok || !acct.Mint.Equals(ix.GetMintAccount().PublicKey) {
			return tokenError(tokenErrMintMismatch, "mint mismatch")
		}
		if mint.Decimals != *ix.Decimals {
			return tokenError(tokenErrMintDecimalsMismatch, "decimals mismatch")
		}
		delegate := ix.GetDelegateAccount().PublicKey
		acct.Delegate = &delegate
		acct.DelegatedAmount = *ix.Amount
		return nil

	case *token.Approve:
		e.logf("Program log: Instruction: Approve")
		acct, err := e.ownedTokenAccount(ix.GetSourceAccount(), ix.GetOwnerAccount())
		if err != nil {
			return err
		}
		delegate := ix.GetDelegateAccount().PublicKey
		acct.Delegate = &delegate
		acct.DelegatedAmount = *ix.Amount
		return nil

	case *token.Revoke:
		e.logf("Program log: Instruction: Revoke")
		acct, err := e.ownedTokenAccount(ix.GetSourceAccount(), ix.GetOwnerAccount())
		if err != nil {
			return err
		}
		acct.Delegate = nil
		acct.DelegatedAmount = 0
		return nil

	case *token.SetAuthority:
		e.logf("Program log: Instruction: SetAuthority")
		if *ix.AuthorityType != token.AuthorityAccountOwner {
			return cerrors.TransactionFailed("only account owner authority changes are supported")
		}
		if ix.NewAuthority == nil {
			return cerrors.TransactionFailed("account owner cannot be cleared")
		}
		acct, err := e.ownedTokenAccount(ix.GetSubjectAccount(), ix.GetAuthorityAccount())
		if err != nil {
			return err
		}
		acct.Owner = *ix.NewAuthority
		acct.Delegate = nil
		acct.DelegatedAmount = 0
		return nil

	default:
		return cerrors.TransactionFailed(fmt.Sprintf("unsupported token instruction %T", inst.Impl))
	}
}

// ownedTokenAccount resolves a token account and checks that owner is its
// owner and signed the bundle.
func (e *execution) ownedTokenAccount(subject, owner *solana.AccountMeta) (*token.Account, error) {
	acct, ok := e.sim.state.tokens[subject.PublicKey]
	if !ok {
		return nil, cerrors.TransactionFailed(fmt.Sprintf("token account %s not found", subject.PublicKey))
	}
	if !acct.Owner.Equals(owner.PublicKey) || !e.signed(owner) {
		return nil, tokenError(tokenErrOwnerMismatch, "owner does not match")
	}
	return acct, nil
}

func (e *execution) executeWrapper(accounts []*solana.AccountMeta, data []byte) error {
	decoded, err := program.DecodeInstruction(e.sim.registry, data)
	if err != nil {
		return err
	}

	switch decoded.Kind {
	case discriminator.KindInitialize:
		e.logf("Program log: Instruction: Initialize")
		return e.initialize(accounts)
	case discriminator.KindInitializePoolAuthority:
		e.logf("Program log: Instruction: InitializePoolAuthority")
		return e.initializePoolAuthority(accounts, decoded.PoolID)
	case discriminator.KindSwapWithPoolAuthority:
		e.logf("Program log: Instruction: SwapWithPoolAuthority")
		return e.swap(accounts, decoded.Frame, true)
	case discriminator.KindSwapWithSeq:
		e.logf("Program log: Instruction: SwapWithSeq")
		return e.swap(accounts, decoded.Frame, false)
	default:
		return cerrors.MalformedFrame(fmt.Sprintf("unhandled instruction %s", decoded.Kind))
	}
}

func (e *execution) create(address solana.PublicKey, payer *solana.AccountMeta, data []byte, what string) error {
	if _, exists := e.sim.state.accounts[address]; exists {
		e.logf("Allocate: account Address { address: %s, base: None } already in use", address)
		return cerrors.AlreadyInitialized(what)
	}
	if !e.signed(payer) {
		return cerrors.TransactionFailed("payer must sign")
	}
	e.sim.state.accounts[address] = &ledger.Account{
		Owner:    e.sim.programID,
		Lamports: rentExempt(len(data)),
		Data:     data,
	}
	return nil
}

func (e *execution) initialize(accounts []*solana.AccountMeta) error {
	if len(accounts) < 2 {
		return cerrors.TransactionFailed("initialize: not enough accounts")
	}
	fifo, err := e.sim.deriver.FifoState()
	if err != nil {
		return err
	}
	if !accounts[0].PublicKey.Equals(fifo.Address) {
		return cerrors.TransactionFailed("initialize: seeds constraint violated")
	}

	data, err := (&program.FifoState{Seq: 0}).Encode()
	if err != nil {
		return err
	}
	return e.create(fifo.Address, accounts[1], data, "sequence state")
}

func (e *execution) initializePoolAuthority(accounts []*solana.AccountMeta, poolID solana.PublicKey) error {
	if len(accounts) < 2 {
		return cerrors.TransactionFailed("initialize_pool_authority: not enough accounts")
	}
	st, err := e.sim.deriver.PoolAuthorityState(poolID)
	if err != nil {
		return err
	}
	if !accounts[0].PublicKey.Equals(st.Address) {
		return cerrors.TransactionFailed("initialize_pool_authority: seeds constraint violated")
	}

	data, err := (&program.PoolAuthorityState{
		PoolID:       poolID,
		CreatedAt:    e.sim.now().Unix(),
		FifoEnforced: true,
	}).Encode()
	if err != nil {
		return err
	}
	return e.create(st.Address, accounts[1], data, fmt.Sprintf("pool authority for %s", poolID))
}

// swap enforces the sequence, spends the delegate approval through the AMM
// and revokes it. withPoolAuthority selects the current account layout;
// otherwise the first release's delegate-only layout is used.
func (e *execution) swap(accounts []*solana.AccountMeta, w *frame.WrappedInstruction, withPoolAuthority bool) error {
	fixed := 7
	if withPoolAuthority {
		fixed = 9
	}
	if len(accounts) < fixed+2 {
		return cerrors.TransactionFailed("swap: not enough accounts")
	}

	var fifoMeta, delegateMeta, userMeta, sourceMeta, destMeta *solana.AccountMeta
	if withPoolAuthority {
		fifoMeta, delegateMeta, userMeta, sourceMeta, destMeta = accounts[0], accounts[3], accounts[4], accounts[5], accounts[6]
	} else {
		fifoMeta, delegateMeta, userMeta, sourceMeta, destMeta = accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]
	}
	remaining := accounts[fixed:]
	poolID := remaining[1].PublicKey

	fifo, err := e.sim.deriver.FifoState()
	if err != nil {
		return err
	}
	if !fifoMeta.PublicKey.Equals(fifo.Address) {
		return cerrors.TransactionFailed("swap: seeds constraint violated")
	}
	fifoAcct, ok := e.sim.state.accounts[fifo.Address]
	if !ok {
		return cerrors.NotInitialized("sequence state")
	}
	current, err := program.DecodeFifoState(fifoAcct.Data)
	if err != nil {
		return err
	}

	if w.Sequence != current.Seq+1 {
		e.logf("Program log: AnchorError occurred. Error Code: BadSeq. Error Number: %d. Error Message: Bad sequence.", program.ErrorCodeBadSeq)
		return programError(e.sim.programID, program.ErrorCodeBadSeq, cerrors.SequenceConflict(current.Seq+1, w.Sequence))
	}

	if withPoolAuthority {
		addrs, err := e.sim.deriver.ForPool(poolID)
		if err != nil {
			return err
		}
		if !accounts[1].PublicKey.Equals(addrs.PoolAuthorityState.Address) ||
			!accounts[2].PublicKey.Equals(addrs.PoolAuthority.Address) {
			return cerrors.TransactionFailed("swap: pool authority seeds constraint violated")
		}
		if _, ok := e.sim.state.accounts[addrs.PoolAuthorityState.Address]; !ok {
			return cerrors.NotInitialized(fmt.Sprintf("pool authority for %s", poolID))
		}
	}

	if !e.signed(userMeta) {
		return cerrors.TransactionFailed("swap: user must sign")
	}
	delegate, err := e.sim.deriver.Delegate(sourceMeta.PublicKey)
	if err != nil {
		return err
	}
	if !delegateMeta.PublicKey.Equals(delegate.Address) {
		return cerrors.TransactionFailed("swap: delegate seeds constraint violated")
	}

	payload, err := frame.DecodeSwapPayload(w.Inner)
	if err != nil {
		return err
	}

	out, err := e.ammSwap(poolID, sourceMeta.PublicKey, destMeta.PublicKey, delegate.Address, payload)
	if err != nil {
		return err
	}

	source := e.sim.state.tokens[sourceMeta.PublicKey]
	source.Delegate = nil
	source.DelegatedAmount = 0

	next := program.FifoState{Seq: w.Sequence}
	if fifoAcct.Data, err = next.Encode(); err != nil {
		return err
	}

	event, err := (&program.SwapEvent{Seq: w.Sequence, User: userMeta.PublicKey, PoolID: poolID}).Encode()
	if err != nil {
		return err
	}
	e.logf("Program log: swap seq=%d in=%d out=%d", w.Sequence, payload.AmountIn, out)
	e.logf("Program data: %s", base64.StdEncoding.EncodeToString(event))
	return nil
}

// programError attributes a failure to the program that raised it, the way
// the ledger reports custom program errors.
func programError(programID solana.PublicKey, code uint32, err *cerrors.ProtocolError) error {
	return err.WithDetails(map[string]any{
		"program":     programID.String(),
		"custom_code": code,
	})
}

func tokenError(code uint32, reason string) error {
	return programError(solana.TokenProgramID, code, cerrors.TransactionFailed(reason))
}

func failureReason(err error) string {
	if code, ok := cerrors.DetailsOf(err)["custom_code"].(uint32); ok {
		return fmt.Sprintf("custom program error: 0x%x", code)
	}
	return err.Error()
}
