package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Wallet represents a Solana wallet
type Wallet struct {
	privateKey solana.PrivateKey
}

// NewWallet generates a new random wallet
func NewWallet() *Wallet {
	account := solana.NewWallet()
	return &Wallet{
		privateKey: account.PrivateKey,
	}
}

// WalletFromBase58 creates a wallet from a base58-encoded private key
func WalletFromBase58(key string) (*Wallet, error) {
	pk, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{privateKey: pk}, nil
}

// WalletFromFile loads a wallet from a JSON keypair file (Solana CLI format).
// A leading ~ expands to the home directory.
func WalletFromFile(path string) (*Wallet, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}

	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair size: expected %d, got %d", ed25519.PrivateKeySize, len(values))
	}

	keypair := make(solana.PrivateKey, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid keypair byte at %d: %d", i, v)
		}
		keypair[i] = byte(v)
	}
	return &Wallet{privateKey: keypair}, nil
}

// LoadWallet accepts either a keypair file path or a base58 private key.
func LoadWallet(keyOrPath string) (*Wallet, error) {
	if keyOrPath == "" {
		return nil, fmt.Errorf("no keypair configured")
	}
	if w, err := WalletFromBase58(keyOrPath); err == nil && len(w.privateKey) == ed25519.PrivateKeySize {
		return w, nil
	}
	return WalletFromFile(keyOrPath)
}

// PublicKey returns the wallet's public key
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.privateKey.PublicKey()
}

// PrivateKey returns the wallet's private key
func (w *Wallet) PrivateKey() solana.PrivateKey {
	return w.privateKey
}

// SaveToFile saves the keypair to a JSON file (Solana CLI format)
func (w *Wallet) SaveToFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	// json encodes []byte as base64; the CLI format is an array of numbers.
	keypair := make([]int, len(w.privateKey))
	for i, b := range w.privateKey {
		keypair[i] = int(b)
	}
	data, err := json.Marshal(keypair)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}

	return nil
}

// String returns the public key as a string
func (w *Wallet) String() string {
	return w.PublicKey().String()
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
