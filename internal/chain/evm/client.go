package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/metrics"
	"github.com/ioogle/evm-tx-sampler/internal/types"
)

var _ interfaces.ChainClient = (*Client)(nil)

// Client ChainClient backed by a FailoverRPCClient
type Client struct {
	rpc     *FailoverRPCClient
	metrics *metrics.RPCClient
}

// NewClient connects to the chain's RPC endpoints
func NewClient(ctx context.Context, cfg config.ChainConfig) (*Client, error) {
	rpcClient, err := NewFailoverRPCClient(ctx, cfg.RPCURL, cfg.BackupRPCURLs, cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client for %s: %w", cfg.Name, err)
	}
	return &Client{rpc: rpcClient, metrics: metrics.NewRPCClient(cfg.Name)}, nil
}

// Close releases the RPC connections
func (c *Client) Close() {
	c.rpc.Close()
}

// call rate limits fn, records metrics and feeds the failover bookkeeping.
// A JSON-RPC error object means the node answered, so it does not count against the endpoint;
// neither does a cancelled or expired ctx.
func call[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	started := time.Now()

	if err := c.rpc.waitForRateLimit(ctx); err != nil {
		c.metrics.Observe(operation, err, started)
		return zero, err
	}

	res, err := fn(ctx)
	if errors.Is(err, ethereum.NotFound) {
		c.metrics.Observe(operation, nil, started)
		c.rpc.ReportSuccess()
		return zero, fmt.Errorf("%s: %w", operation, types.ErrNotFound)
	}
	c.metrics.Observe(operation, err, started)
	if err != nil {
		// the caller gave up; the endpoint did nothing wrong
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", operation, err)
		}

		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			c.rpc.ReportSuccess()
		} else {
			c.rpc.ReportError(err)
		}
		return zero, fmt.Errorf("%s: %w", operation, err)
	}

	c.rpc.ReportSuccess()
	return res, nil
}

// BlockNumber gets the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, "eth_blockNumber", func(ctx context.Context) (uint64, error) {
		return c.rpc.GetClient().BlockNumber(ctx)
	})
}

// HeaderByNumber gets the block header
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return call(ctx, c, "eth_getBlockByNumber", func(ctx context.Context) (*ethtypes.Header, error) {
		return c.rpc.GetClient().HeaderByNumber(ctx, number)
	})
}

// TransactionReceipt gets the transaction receipt
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return call(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*ethtypes.Receipt, error) {
		return c.rpc.GetClient().TransactionReceipt(ctx, hash)
	})
}

// StorageAt reads a storage word at the latest block
func (c *Client) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	return call(ctx, c, "eth_getStorageAt", func(ctx context.Context) ([]byte, error) {
		return c.rpc.GetClient().StorageAt(ctx, account, slot, nil)
	})
}

// CodeAt gets deployed bytecode at the latest block
func (c *Client) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return call(ctx, c, "eth_getCode", func(ctx context.Context) ([]byte, error) {
		return c.rpc.GetClient().CodeAt(ctx, account, nil)
	})
}

// CallContract executes eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.rpc.GetClient().CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	})
}

// TransactionByHash gets a transaction together with sender and inclusion info.
// ethclient hides the block number, so the raw RPC result is decoded here.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.ChainTransaction, error) {
	return call(ctx, c, "eth_getTransactionByHash", func(ctx context.Context) (*types.ChainTransaction, error) {
		var raw json.RawMessage
		if err := c.rpc.GetRPCClient().CallContext(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
			return nil, err
		}
		if len(raw) == 0 || string(raw) == "null" {
			return nil, ethereum.NotFound
		}

		var tx rpcTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", hash.Hex(), err)
		}
		return tx.toChainTransaction()
	})
}

type rpcTransaction struct {
	tx *ethtypes.Transaction
	txExtraInfo
}

type txExtraInfo struct {
	BlockNumber      *hexutil.Big    `json:"blockNumber,omitempty"`
	BlockHash        *common.Hash    `json:"blockHash,omitempty"`
	From             *common.Address `json:"from,omitempty"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex,omitempty"`
}

func (tx *rpcTransaction) UnmarshalJSON(msg []byte) error {
	if err := json.Unmarshal(msg, &tx.tx); err != nil {
		return err
	}
	return json.Unmarshal(msg, &tx.txExtraInfo)
}

func (tx *rpcTransaction) toChainTransaction() (*types.ChainTransaction, error) {
	out := &types.ChainTransaction{Tx: tx.tx}

	if tx.From != nil {
		out.From = *tx.From
	} else {
		from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.tx.ChainId()), tx.tx)
		if err != nil {
			return nil, fmt.Errorf("failed to recover sender: %w", err)
		}
		out.From = from
	}

	if tx.BlockNumber != nil {
		n := (*big.Int)(tx.BlockNumber).Uint64()
		out.BlockNumber = &n
	}
	if tx.BlockHash != nil {
		out.BlockHash = *tx.BlockHash
	}
	if tx.TransactionIndex != nil {
		out.Index = uint(*tx.TransactionIndex)
	}
	return out, nil
}
