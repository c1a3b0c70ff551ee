package sequence

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
	"github.com/lugondev/go-continuum/internal/ledger"
)

type fakeReader struct {
	data  map[solana.PublicKey][]byte
	err   error
	reads int
}

func (f *fakeReader) ReadAt(ctx context.Context, address solana.PublicKey, offset, length uint64) ([]byte, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[address]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if offset > end {
		return nil, nil
	}
	return data[offset:end], nil
}

func (f *fakeReader) GetAccount(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
	data, ok := f.data[address]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &ledger.Account{Data: data}, nil
}

func stateBytes(seq uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[8:], seq)
	return buf
}

func TestManagerRead(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	reader := &fakeReader{data: map[solana.PublicKey][]byte{addr: stateBytes(5)}}
	m := NewManager(reader, addr)

	seq, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seq)

	next, err := m.ProposeNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), next)
}

func TestManagerProposeNextAlwaysRereads(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	reader := &fakeReader{data: map[solana.PublicKey][]byte{addr: stateBytes(5)}}
	m := NewManager(reader, addr)

	next, err := m.ProposeNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), next)

	reader.data[addr] = stateBytes(9)
	next, err = m.ProposeNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), next)
	assert.Equal(t, 2, reader.reads)
}

func TestManagerReadErrors(t *testing.T) {
	addr := solana.NewWallet().PublicKey()

	t.Run("missing account", func(t *testing.T) {
		m := NewManager(&fakeReader{data: map[solana.PublicKey][]byte{}}, addr)
		_, err := m.Read(context.Background())
		assert.ErrorIs(t, err, cerrors.ErrNotInitialized)
	})

	t.Run("short account", func(t *testing.T) {
		m := NewManager(&fakeReader{data: map[solana.PublicKey][]byte{addr: make([]byte, 12)}}, addr)
		_, err := m.Read(context.Background())
		assert.Equal(t, cerrors.ErrCodeDecodeFailed, cerrors.CodeOf(err))
	})

	t.Run("transport", func(t *testing.T) {
		boom := errors.New("connection refused")
		m := NewManager(&fakeReader{err: boom}, addr)
		_, err := m.Read(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}
