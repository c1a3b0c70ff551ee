package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	csolana "github.com/lugondev/go-continuum/internal/solana"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	keypair := filepath.Join(dir, "id.json")
	require.NoError(t, csolana.NewWallet().SaveToFile(keypair))

	path := filepath.Join(dir, "continuum.yaml")
	content := fmt.Sprintf(`
pools_file: %s
relayer:
  keypair: %s
  confirm_timeout: 1s
  poll_interval: 1ms
log:
  level: error
metrics:
  backend: none
`, filepath.Join(dir, "missing-pools.yaml"), keypair)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	swapPool, swapSource, swapDestination = "", "", ""
	swapAmountIn, swapMinOut = 0, 0
	derivePool, deriveSource = "", ""
	simulate = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDiscCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "disc")
	require.NoError(t, err)
	assert.Contains(t, out, "global:swap_with_pool_authority")
	assert.Contains(t, out, "edb450")
	assert.NotContains(t, out, "false")
}

func TestDeriveCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "derive", "--pool", "FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ")
	require.NoError(t, err)
	assert.Contains(t, out, "fifo_state")
	assert.Contains(t, out, "pool_authority_state")
	assert.Contains(t, out, "pool_authority")

	_, err = run(t, "--config", writeConfig(t), "derive", "--pool", "nope")
	assert.Error(t, err)
}

func TestSimulatedSwap(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "--simulate", "swap", "--amount-in", "1000000", "--min-out", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Swap accepted")
	assert.Contains(t, out, "Sequence:  1")
}

func TestSimulatedSwapSlippage(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "--simulate", "swap", "--amount-in", "1000000", "--min-out", "1000000")
	assert.ErrorIs(t, err, cerrors.ErrSlippageExceeded)
}

func TestSimulatedInitIsIdempotent(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "--simulate", "init")
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)

	_, err = run(t, "--config", writeConfig(t), "--simulate", "pool", "init", "FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ")
	assert.ErrorIs(t, err, cerrors.ErrAlreadyInitialized)
}

func TestSimulatedSequenceAndPoolStatus(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "--simulate", "sequence")
	require.NoError(t, err)
	assert.Contains(t, out, "Current:      0")
	assert.Contains(t, out, "Next:         1")

	out, err = run(t, "--config", writeConfig(t), "--simulate", "pool", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "devnet-test")
	assert.Contains(t, out, "initialized")
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := run(t, "--config", "/does/not/exist.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Continuum CLI")
}
