// Package solana implements the ledger over Solana JSON-RPC.
package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
)

// DefaultMaxRetries is the default number of retries for read calls.
const DefaultMaxRetries = 3

// DefaultRetryDelay is the initial delay between read retries.
const DefaultRetryDelay = 500 * time.Millisecond

// Client is a ledger.Ledger backed by an RPC endpoint.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	classifier *Classifier
	logger     *zap.Logger
	maxRetries uint64
	retryDelay time.Duration
}

var _ ledger.Ledger = (*Client)(nil)

// NewClient creates a client for endpoint. Failures are attributed with
// classifier.
func NewClient(endpoint string, commitment string, classifier *Classifier) *Client {
	c := rpc.CommitmentType(commitment)
	if commitment == "" {
		c = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: c,
		classifier: classifier,
		logger:     zap.NewNop(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// WithLogger sets a custom logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	c.logger = logger
	return c
}

// WithRetry overrides the retry policy of read calls.
func (c *Client) WithRetry(maxRetries int, delay time.Duration) *Client {
	c.maxRetries = uint64(maxRetries)
	c.retryDelay = delay
	return c
}

// GetBalance returns the balance of an account in lamports
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return result.Value, nil
}

// RequestAirdrop requests an airdrop of SOL (only works on devnet/testnet)
func (c *Client) RequestAirdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, pubkey, lamports, c.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to request airdrop: %w", err)
	}
	return sig, nil
}

func (c *Client) GetAccount(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
	return c.getAccount(ctx, address, nil)
}

// ReadAt fetches only the requested window with a data slice.
func (c *Client) ReadAt(ctx context.Context, address solana.PublicKey, offset, length uint64) ([]byte, error) {
	acct, err := c.getAccount(ctx, address, &rpc.DataSlice{Offset: &offset, Length: &length})
	if err != nil {
		return nil, err
	}
	return acct.Data, nil
}

func (c *Client) getAccount(ctx context.Context, address solana.PublicKey, slice *rpc.DataSlice) (*ledger.Account, error) {
	opts := &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
		DataSlice:  slice,
	}

	var result *rpc.GetAccountInfoResult
	err := c.retry(ctx, "getAccountInfo", func() error {
		var err error
		result, err = c.rpc.GetAccountInfoWithOpts(ctx, address, opts)
		if errors.Is(err, rpc.ErrNotFound) {
			return backoff.Permanent(ledger.ErrAccountNotFound)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if result == nil || result.Value == nil {
		return nil, ledger.ErrAccountNotFound
	}

	return &ledger.Account{
		Owner:    result.Value.Owner,
		Lamports: result.Value.Lamports,
		Data:     result.Value.Data.GetBinary(),
	}, nil
}

// Submit signs the bundle against a fresh blockhash and sends it with
// preflight. A preflight rejection is classified from its simulation logs.
func (c *Client) Submit(ctx context.Context, bundle ledger.Bundle) (solana.Signature, error) {
	if len(bundle.Instructions) == 0 {
		return solana.Signature{}, cerrors.InvalidRequest("empty bundle")
	}

	latest, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := BuildTransaction(bundle, latest.Value.Blockhash)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			if logs := simulationLogs(rpcErr); len(logs) > 0 {
				return solana.Signature{}, c.classifier.Classify(logs, rpcErr.Message)
			}
		}
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("bundle sent",
		zap.Stringer("signature", sig),
		zap.Int("instructions", len(bundle.Instructions)))
	return sig, nil
}

// BuildTransaction assembles and signs bundle. Every required signer must
// be present in bundle.Signers.
func BuildTransaction(bundle ledger.Bundle, blockhash solana.Hash) (*solana.Transaction, error) {
	payer := bundle.FeePayer
	if payer.IsZero() && len(bundle.Signers) > 0 {
		payer = bundle.Signers[0].PublicKey()
	}

	tx, err := solana.NewTransaction(bundle.Instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, cerrors.InvalidRequest("build transaction").WithCause(err)
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
		return nil, cerrors.InvalidRequest("sign transaction").WithCause(err)
	}
	return tx, nil
}

// SignatureStatus maps the RPC signature status. A failed bundle is
// classified from the logs of its transaction.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*ledger.Status, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	status := &ledger.Status{Signature: sig, Confirmation: ledger.ConfirmationNotFound}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return status, nil
	}

	value := result.Value[0]
	status.Slot = value.Slot
	if value.Err != nil {
		status.Confirmation = ledger.ConfirmationFailed
		status.Err = c.failure(ctx, sig, value.Err)
		return status, nil
	}

	switch value.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		status.Confirmation = ledger.ConfirmationFinalized
	case rpc.ConfirmationStatusConfirmed:
		status.Confirmation = ledger.ConfirmationConfirmed
	default:
		status.Confirmation = ledger.ConfirmationProcessed
	}
	return status, nil
}

// Logs returns the log messages of a landed transaction.
func (c *Client) Logs(ctx context.Context, sig solana.Signature) ([]string, error) {
	maxVersion := uint64(0)
	var result *rpc.GetTransactionResult
	err := c.retry(ctx, "getTransaction", func() error {
		var err error
		result, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if result == nil || result.Meta == nil {
		return nil, nil
	}
	return result.Meta.LogMessages, nil
}

func (c *Client) failure(ctx context.Context, sig solana.Signature, statusErr any) error {
	reason := fmt.Sprintf("%v", statusErr)
	logs, err := c.Logs(ctx, sig)
	if err != nil {
		c.logger.Warn("fetch logs of failed bundle",
			zap.Stringer("signature", sig),
			zap.Error(err))
		return cerrors.TransactionFailed(reason).WithCause(err)
	}
	return c.classifier.Classify(logs, reason)
}

// retry runs op with exponential backoff for transient RPC errors.
func (c *Client) retry(ctx context.Context, call string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx),
		func(err error, wait time.Duration) {
			c.logger.Debug("RPC call failed, retrying",
				zap.String("call", call),
				zap.Duration("wait", wait),
				zap.Error(err))
		})
}

// simulationLogs extracts the preflight simulation logs carried in the
// data of a sendTransaction error.
func simulationLogs(rpcErr *jsonrpc.RPCError) []string {
	data, ok := rpcErr.Data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := data["logs"].([]any)
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
