package explorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.ChainConfig{
		Name:              "eth",
		ChainID:           1,
		ExplorerAPIURL:    server.URL + "/api",
		ExplorerAPIKey:    "secret",
		ExplorerRateLimit: 1000,
	}, config.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	})
}

func TestListTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, testAddress.Hex(), q.Get("address"))
		assert.Equal(t, "0", q.Get("startblock"))
		assert.Equal(t, "99", q.Get("endblock"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "1000", q.Get("offset"))
		assert.Equal(t, "desc", q.Get("sort"))
		assert.Equal(t, "1", q.Get("chainid"))
		assert.Equal(t, "secret", q.Get("apikey"))

		fmt.Fprint(w, `{"status":"1","message":"OK","result":[
			{"blockNumber":"90","timeStamp":"1700000000","hash":"0xAB","from":"0xF","to":"0xT","input":"0xa9059cbb00","methodId":"0xa9059cbb","isError":"0"},
			{"blockNumber":"80","timeStamp":"1690000000","hash":"0xcd","from":"0xf","to":"0xt","input":"0x","methodId":"0x","isError":"1"}
		]}`)
	})

	txs, err := client.ListTransactions(context.Background(), testAddress, interfaces.ListOptions{
		EndBlock: 99, Page: 1, Offset: 1000, Sort: interfaces.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, types.ExplorerTransaction{
		Hash: "0xab", BlockNumber: 90, From: "0xf", To: "0xt", Input: "0xa9059cbb00",
		MethodID: "0xa9059cbb", Timestamp: 1700000000,
	}, txs[0])
	assert.True(t, txs[1].IsError)
}

func TestListTransactionsNoTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
	})

	txs, err := client.ListTransactions(context.Background(), testAddress, interfaces.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestListTransactionsBadBlockNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"blockNumber":"x","hash":"0x1"}]}`)
	})

	_, err := client.ListTransactions(context.Background(), testAddress, interfaces.ListOptions{})
	assert.Error(t, err)
}

func TestGetVerifiedABI(t *testing.T) {
	abiJSON := `[{"type":"function","name":"mint","inputs":[]}]`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "contract", r.URL.Query().Get("module"))
		assert.Equal(t, "getabi", r.URL.Query().Get("action"))
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":%q}`, abiJSON)
	})

	abi, err := client.GetVerifiedABI(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, abiJSON, abi)
}

func TestGetVerifiedABINotVerified(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`)
	})

	_, err := client.GetVerifiedABI(context.Background(), testAddress)
	assert.ErrorIs(t, err, types.ErrContractNotVerified)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
			return
		}
		fmt.Fprint(w, `{"status":"1","message":"OK","result":"[]"}`)
	})

	abi, err := client.GetVerifiedABI(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "[]", abi)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListTransactions(context.Background(), testAddress, interfaces.ListOptions{})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.GetVerifiedABI(context.Background(), testAddress)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
