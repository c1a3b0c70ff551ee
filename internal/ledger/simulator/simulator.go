// Package simulator is an in-memory ledger that executes wrapper and token
// instructions with the receiving program's semantics: bundles apply
// all-or-nothing, the sequence advances by compare-and-swap, delegate
// approvals carry a ceiling and are revoked once spent, and swaps run a
// constant-product curve with a minimum-output check.
package simulator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
	"github.com/lugondev/go-continuum/internal/program"
	"github.com/lugondev/go-continuum/pkg/discriminator"
	"github.com/lugondev/go-continuum/pkg/pda"
)

// DefaultFeeBps is the AMM v4 trade fee.
const DefaultFeeBps = 25

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the time source stamped into created accounts.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

type state struct {
	// accounts holds program-owned raw accounts.
	accounts map[solana.PublicKey]*ledger.Account
	tokens   map[solana.PublicKey]*token.Account
	mints    map[solana.PublicKey]*token.Mint
}

func (st *state) clone() *state {
	out := &state{
		accounts: make(map[solana.PublicKey]*ledger.Account, len(st.accounts)),
		tokens:   make(map[solana.PublicKey]*token.Account, len(st.tokens)),
		mints:    make(map[solana.PublicKey]*token.Mint, len(st.mints)),
	}
	for k, v := range st.accounts {
		out.accounts[k] = &ledger.Account{
			Owner:    v.Owner,
			Lamports: v.Lamports,
			Data:     bytes.Clone(v.Data),
		}
	}
	for k, v := range st.tokens {
		cp := *v
		if v.Delegate != nil {
			d := *v.Delegate
			cp.Delegate = &d
		}
		out.tokens[k] = &cp
	}
	for k, v := range st.mints {
		cp := *v
		out.mints[k] = &cp
	}
	return out
}

// Simulator implements ledger.Ledger in memory.
type Simulator struct {
	mu sync.Mutex

	programID solana.PublicKey
	deriver   *pda.Deriver
	registry  *discriminator.Registry
	now       func() time.Time
	logger    *zap.Logger

	state    *state
	pools    map[solana.PublicKey]*pool
	statuses map[solana.Signature]*ledger.Status
	logs     map[solana.Signature][]string
	slot     uint64
	hidden   bool
}

var _ ledger.Ledger = (*Simulator)(nil)

// New creates an empty ledger hosting the wrapper at programID.
func New(programID solana.PublicKey, opts ...Option) *Simulator {
	s := &Simulator{
		programID: programID,
		deriver:   pda.NewDeriver(programID),
		registry:  discriminator.Default(),
		now:       time.Now,
		logger:    zap.NewNop(),
		state: &state{
			accounts: make(map[solana.PublicKey]*ledger.Account),
			tokens:   make(map[solana.PublicKey]*token.Account),
			mints:    make(map[solana.PublicKey]*token.Mint),
		},
		pools:    make(map[solana.PublicKey]*pool),
		statuses: make(map[solana.Signature]*ledger.Status),
		logs:     make(map[solana.Signature][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProgramID returns the hosted wrapper program id.
func (s *Simulator) ProgramID() solana.PublicKey {
	return s.programID
}

// SetSequence creates or overwrites the sequence-state account.
func (s *Simulator) SetSequence(seq uint64) error {
	fifo, err := s.deriver.FifoState()
	if err != nil {
		return err
	}
	data, err := (&program.FifoState{Seq: seq}).Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[fifo.Address] = &ledger.Account{Owner: s.programID, Lamports: rentExempt(len(data)), Data: data}
	return nil
}

// AddMint registers a mint with its decimals.
func (s *Simulator) AddMint(mint solana.PublicKey, decimals uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.mints[mint] = &token.Mint{Decimals: decimals, IsInitialized: true}
}

// AddTokenAccount creates a token account holding amount of mint.
func (s *Simulator) AddTokenAccount(address, mint, owner solana.PublicKey, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tokens[address] = &token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.Initialized,
	}
}

// TokenAccount returns a copy of a token account.
func (s *Simulator) TokenAccount(address solana.PublicKey) (token.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.state.tokens[address]
	if !ok {
		return token.Account{}, false
	}
	return *acct, true
}

// HideStatuses makes SignatureStatus report every signature as not found,
// as a ledger does while a landed bundle has not propagated.
func (s *Simulator) HideStatuses(hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = hidden
}

// Logs returns the program logs of a submitted bundle.
func (s *Simulator) Logs(sig solana.Signature) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs[sig]...)
}

// Dump returns the serialized data of every account, keyed by address.
func (s *Simulator) Dump() (map[solana.PublicKey][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[solana.PublicKey][]byte, len(s.state.accounts)+len(s.state.tokens)+len(s.state.mints))
	for addr := range s.state.accounts {
		acct, err := s.lookup(addr)
		if err != nil {
			return nil, err
		}
		out[addr] = acct.Data
	}
	for addr := range s.state.tokens {
		acct, err := s.lookup(addr)
		if err != nil {
			return nil, err
		}
		out[addr] = acct.Data
	}
	for addr := range s.state.mints {
		acct, err := s.lookup(addr)
		if err != nil {
			return nil, err
		}
		out[addr] = acct.Data
	}
	return out, nil
}

func (s *Simulator) GetAccount(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(address)
}

func (s *Simulator) ReadAt(ctx context.Context, address solana.PublicKey, offset, length uint64) ([]byte, error) {
	acct, err := s.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(acct.Data)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > uint64(len(acct.Data)) {
		end = uint64(len(acct.Data))
	}
	return acct.Data[offset:end], nil
}

func (s *Simulator) lookup(address solana.PublicKey) (*ledger.Account, error) {
	if acct, ok := s.state.accounts[address]; ok {
		return &ledger.Account{Owner: acct.Owner, Lamports: acct.Lamports, Data: bytes.Clone(acct.Data)}, nil
	}
	if acct, ok := s.state.tokens[address]; ok {
		data, err := encode(acct)
		if err != nil {
			return nil, err
		}
		return &ledger.Account{Owner: solana.TokenProgramID, Lamports: rentExempt(len(data)), Data: data}, nil
	}
	if mint, ok := s.state.mints[address]; ok {
		data, err := encode(mint)
		if err != nil {
			return nil, err
		}
		return &ledger.Account{Owner: solana.TokenProgramID, Lamports: rentExempt(len(data)), Data: data}, nil
	}
	return nil, ledger.ErrAccountNotFound
}

func (s *Simulator) SignatureStatus(ctx context.Context, sig solana.Signature) (*ledger.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.statuses[sig]
	if !ok || s.hidden {
		return &ledger.Status{Signature: sig, Confirmation: ledger.ConfirmationNotFound}, nil
	}
	cp := *status
	return &cp, nil
}

// Submit signs and executes bundle atomically. A failing instruction rolls
// back every earlier instruction of the bundle; the failure is recorded
// under the signature and returned classified.
func (s *Simulator) Submit(ctx context.Context, bundle ledger.Bundle) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if len(bundle.Instructions) == 0 {
		return solana.Signature{}, cerrors.InvalidRequest("empty bundle")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slot++
	sig, err := s.sign(bundle)
	if err != nil {
		return solana.Signature{}, err
	}

	snapshot := s.state.clone()
	run := &execution{sim: s, signers: signerSet(bundle)}
	for i, ix := range bundle.Instructions {
		if err := run.execute(ix); err != nil {
			s.state = snapshot
			if inner, ok := cerrors.DetailsOf(err)["program"].(string); ok && inner != ix.ProgramID().String() {
				run.logf("Program %s failed: %s", inner, failureReason(err))
			}
			run.logf("Program %s failed: %s", ix.ProgramID(), failureReason(err))
			s.logs[sig] = run.logs
			s.statuses[sig] = &ledger.Status{
				Signature:    sig,
				Confirmation: ledger.ConfirmationFailed,
				Slot:         s.slot,
				Err:          err,
			}
			s.logger.Debug("bundle rolled back",
				zap.Stringer("signature", sig),
				zap.Int("instruction", i),
				zap.Error(err))
			return sig, err
		}
	}

	s.logs[sig] = run.logs
	s.statuses[sig] = &ledger.Status{
		Signature:    sig,
		Confirmation: ledger.ConfirmationConfirmed,
		Slot:         s.slot,
	}
	return sig, nil
}

// sign builds the bundle as a transaction so that missing signers are
// caught the way the ledger would catch them.
func (s *Simulator) sign(bundle ledger.Bundle) (solana.Signature, error) {
	payer := bundle.FeePayer
	if payer.IsZero() && len(bundle.Signers) > 0 {
		payer = bundle.Signers[0].PublicKey()
	}

	tx, err := solana.NewTransaction(bundle.Instructions, s.blockhash(), solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, cerrors.InvalidRequest("build transaction").WithCause(err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range bundle.Signers {
			if bundle.Signers[i].PublicKey().Equals(key) {
				return &bundle.Signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, cerrors.InvalidRequest("sign transaction").WithCause(err)
	}
	return tx.Signatures[0], nil
}

func (s *Simulator) blockhash() solana.Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.slot)
	return solana.Hash(sha256.Sum256(buf[:]))
}

func signerSet(bundle ledger.Bundle) map[solana.PublicKey]bool {
	out := make(map[solana.PublicKey]bool, len(bundle.Signers))
	for _, k := range bundle.Signers {
		out[k.PublicKey()] = true
	}
	return out
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func rentExempt(size int) uint64 {
	return uint64(128+size) * 6960
}
