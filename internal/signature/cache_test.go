package signature

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/chain/chaintest"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const tupleABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"params","type":"tuple","components":[{"name":"a","type":"uint256"},{"name":"b","type":"uint256"}]}],"outputs":[]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"}],"outputs":[]}
]`

var (
	tokenAddr = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	otherAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func newFixture(t *testing.T, size int) (*Cache, *chaintest.Explorer, *chaintest.ChainClient) {
	t.Helper()
	cache, err := NewCache(size)
	require.NoError(t, err)
	return cache, chaintest.NewExplorer(), chaintest.NewChainClient()
}

func TestFunctionAndEventMaps(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, erc20ABI)
	h := chaintest.NewHandle("eth", 1, client, explorer)

	functions, events, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	require.NoError(t, err)

	sig, ok := functions.Lookup("0xa9059cbb")
	assert.True(t, ok)
	assert.Equal(t, "transfer(address,uint256)", sig)

	sig, ok = functions.Lookup("0x095EA7B3")
	assert.True(t, ok)
	assert.Equal(t, "approve(address,uint256)", sig)

	sig, ok = events.Lookup("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	assert.True(t, ok)
	assert.Equal(t, "Transfer(address,address,uint256)", sig)

	assert.Len(t, functions, 2)
	assert.Len(t, events, 1)
}

func TestUnknownSelectorIsUnresolved(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, erc20ABI)
	h := chaintest.NewHandle("eth", 1, client, explorer)

	functions, events, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	require.NoError(t, err)

	for _, selector := range []string{"0xdeadbeef", "0x", ""} {
		sig, ok := functions.Lookup(selector)
		assert.False(t, ok)
		assert.Empty(t, sig)
		assert.Nil(t, functions.LookupPtr(selector))
	}
	assert.Nil(t, events.LookupPtr("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"))
}

func TestTupleAndOverloadedSignatures(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, tupleABI)
	h := chaintest.NewHandle("eth", 1, client, explorer)

	functions, _, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	require.NoError(t, err)

	assert.Equal(t, "mint((uint256,uint256))", *functions.LookupPtr("0x25bab46e"))
	assert.Equal(t, "mint(address)", *functions.LookupPtr(keccakHex("mint(address)", 4)))
}

func TestCacheHitSkipsExplorer(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, erc20ABI)
	h := chaintest.NewHandle("eth", 1, client, explorer)

	first, _, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	require.NoError(t, err)
	second, _, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), explorer.ABICalls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestUnverifiedContractFails(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	h := chaintest.NewHandle("eth", 1, client, explorer)

	_, _, err := cache.FunctionAndEventMaps(context.Background(), h, otherAddr)
	assert.ErrorIs(t, err, types.ErrSignatureLookupFailed)
	assert.ErrorIs(t, err, types.ErrContractNotVerified)
	assert.Zero(t, cache.Len())
}

func TestInvalidABIFails(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, "Contract source code not verified")
	h := chaintest.NewHandle("eth", 1, client, explorer)

	_, _, err := cache.FunctionAndEventMaps(context.Background(), h, tokenAddr)
	assert.ErrorIs(t, err, types.ErrSignatureLookupFailed)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache, explorer, client := newFixture(t, 1)
	explorer.SetABI(tokenAddr, erc20ABI)
	explorer.SetABI(otherAddr, tupleABI)
	h := chaintest.NewHandle("eth", 1, client, explorer)
	ctx := context.Background()

	_, _, err := cache.FunctionAndEventMaps(ctx, h, tokenAddr)
	require.NoError(t, err)
	_, _, err = cache.FunctionAndEventMaps(ctx, h, otherAddr)
	require.NoError(t, err)
	_, _, err = cache.FunctionAndEventMaps(ctx, h, tokenAddr)
	require.NoError(t, err)

	assert.Equal(t, int64(3), explorer.ABICalls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheIsPerChain(t *testing.T) {
	cache, explorer, client := newFixture(t, 0)
	explorer.SetABI(tokenAddr, erc20ABI)
	eth := chaintest.NewHandle("eth", 1, client, explorer)
	polygon := chaintest.NewHandle("polygon", 137, client, explorer)

	_, _, err := cache.FunctionAndEventMaps(context.Background(), eth, tokenAddr)
	require.NoError(t, err)
	_, _, err = cache.FunctionAndEventMaps(context.Background(), polygon, tokenAddr)
	require.NoError(t, err)

	assert.Equal(t, int64(2), explorer.ABICalls.Load())
}
