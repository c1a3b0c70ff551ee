package discriminator

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		namespace string
		name      string
		expected  Discriminator
	}{
		{"global", "initialize", Discriminator{175, 175, 109, 31, 13, 152, 155, 237}},
		{"global", "initialize_pool_authority", Discriminator{245, 243, 142, 59, 138, 3, 209, 46}},
		{"global", "swap_with_pool_authority", Discriminator{237, 180, 80, 103, 107, 172, 187, 137}},
		{"global", "swap_with_seq", Discriminator{175, 1, 32, 219, 181, 148, 80, 154}},
		{"global", "swap", Discriminator{248, 198, 158, 145, 225, 117, 135, 200}},
		{"account", "FifoState", Discriminator{95, 31, 138, 201, 99, 121, 124, 131}},
		{"account", "PoolAuthorityState", Discriminator{255, 175, 6, 75, 18, 125, 230, 196}},
		{"event", "SwapEvent", Discriminator{64, 198, 205, 232, 38, 8, 113, 226}},
	}

	for _, tt := range tests {
		t.Run(tt.namespace+":"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compute(tt.namespace, tt.name))

			sum := sha256.Sum256([]byte(tt.namespace + ":" + tt.name))
			assert.Equal(t, sum[:Size], Compute(tt.namespace, tt.name).Bytes())
		})
	}
}

func TestPinnedEntriesMatchComputed(t *testing.T) {
	for _, e := range Entries() {
		assert.Equal(t, Compute(e.Namespace, e.Name), e.Discriminator, "entry %s", e.Kind)
	}
}

func TestCasingProducesDistinctIdentifiers(t *testing.T) {
	snake := Compute(NamespaceGlobal, "swap_with_pool_authority")
	camel := Compute(NamespaceGlobal, "swapWithPoolAuthority")

	assert.NotEqual(t, snake, camel)
	assert.Equal(t, SwapWithPoolAuthority, snake)

	kind := Default().Match(camel.Bytes())
	assert.Equal(t, KindUnknown, kind)
}

func TestRegistryMatch(t *testing.T) {
	reg := Default()

	tests := []struct {
		name     string
		data     []byte
		expected Kind
	}{
		{"wrapped swap", append(SwapWithPoolAuthority.Bytes(), 1, 2, 3), KindSwapWithPoolAuthority},
		{"amm swap", AmmSwap.Bytes(), KindAmmSwap},
		{"fifo account", FifoStateAccount.Bytes(), KindFifoStateAccount},
		{"short", []byte{1, 2, 3}, KindUnknown},
		{"unregistered", []byte{9, 9, 9, 9, 9, 9, 9, 9}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, reg.Match(tt.data))
		})
	}
}

func TestRegistryMatchBatch(t *testing.T) {
	reg := Default()

	results := reg.MatchBatch([]Discriminator{Initialize, {9, 9, 9, 9, 9, 9, 9, 9}, SwapEvent})
	assert.Equal(t, []Kind{KindInitialize, KindUnknown, KindSwapEvent}, results)
	assert.Nil(t, reg.MatchBatch(nil))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Entry{
		{KindInitialize, NamespaceGlobal, "initialize", Initialize},
		{KindSwapWithSeq, NamespaceGlobal, "initialize", Initialize},
	})
	require.Error(t, err)

	_, err = NewRegistry([]Entry{
		{KindInitialize, NamespaceGlobal, "initialize", Initialize},
		{KindInitialize, NamespaceGlobal, "swap", AmmSwap},
	})
	require.Error(t, err)
}

func TestRegistryGet(t *testing.T) {
	reg := Default()

	d, ok := reg.Get(KindSwapWithPoolAuthority)
	require.True(t, ok)
	assert.Equal(t, SwapWithPoolAuthority, d)

	_, ok = reg.Get(KindUnknown)
	assert.False(t, ok)
	assert.Panics(t, func() { reg.MustGet(KindUnknown) })
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, AmmSwap.HasPrefix(append(AmmSwap.Bytes(), 0)))
	assert.False(t, AmmSwap.HasPrefix(AmmSwap.Bytes()[:7]))
	assert.Equal(t, "f8c69e91e17587c8", AmmSwap.String())
	assert.Equal(t, "global:swap", KindAmmSwap.String())
}
