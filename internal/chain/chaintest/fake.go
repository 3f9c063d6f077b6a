// Package chaintest provides in-memory ChainClient and ExplorerClient doubles with call counters.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/types"
)

// ErrExecutionReverted returned by CallContract for selectors without a configured result
var ErrExecutionReverted = errors.New("execution reverted")

var (
	_ interfaces.ChainClient    = (*ChainClient)(nil)
	_ interfaces.ExplorerClient = (*Explorer)(nil)
)

// ChainClient in-memory node. Every call fails with ctx.Err() once ctx is done.
type ChainClient struct {
	mu         sync.Mutex
	head       uint64
	nonce      uint64
	code       map[common.Address][]byte
	storage    map[common.Address]map[common.Hash][]byte
	calls      map[common.Address]map[string][]byte
	callErrors map[common.Address]map[string]error
	txs        map[common.Hash]*types.ChainTransaction
	headers    map[uint64]*ethtypes.Header
	receipts   map[common.Hash]*ethtypes.Receipt

	CodeCalls    atomic.Int64
	StorageCalls atomic.Int64
	CallCalls    atomic.Int64
	TxCalls      atomic.Int64
	HeaderCalls  atomic.Int64
	ReceiptCalls atomic.Int64
}

// NewChainClient creates an empty node at head block 0
func NewChainClient() *ChainClient {
	return &ChainClient{
		code:       make(map[common.Address][]byte),
		storage:    make(map[common.Address]map[common.Hash][]byte),
		calls:      make(map[common.Address]map[string][]byte),
		callErrors: make(map[common.Address]map[string]error),
		txs:        make(map[common.Hash]*types.ChainTransaction),
		headers:    make(map[uint64]*ethtypes.Header),
		receipts:   make(map[common.Hash]*ethtypes.Receipt),
	}
}

// ProbeCalls number of state reads issued so far (code, storage and eth_call)
func (c *ChainClient) ProbeCalls() int64 {
	return c.CodeCalls.Load() + c.StorageCalls.Load() + c.CallCalls.Load()
}

func (c *ChainClient) SetHead(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = n
}

func (c *ChainClient) SetCode(address common.Address, code []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code[address] = code
}

// SetStorageAddress stores address as a 32-byte word at slot
func (c *ChainClient) SetStorageAddress(address common.Address, slot common.Hash, value common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage[address] == nil {
		c.storage[address] = make(map[common.Hash][]byte)
	}
	c.storage[address][slot] = common.LeftPadBytes(value.Bytes(), 32)
}

// SetCall configures the raw eth_call output for selector
func (c *ChainClient) SetCall(address common.Address, selector []byte, out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls[address] == nil {
		c.calls[address] = make(map[string][]byte)
	}
	c.calls[address][hexutil.Encode(selector)] = out
}

// SetCallAddress configures an eth_call returning an ABI encoded address
func (c *ChainClient) SetCallAddress(address common.Address, selector []byte, value common.Address) {
	c.SetCall(address, selector, common.LeftPadBytes(value.Bytes(), 32))
}

func (c *ChainClient) SetCallError(address common.Address, selector []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callErrors[address] == nil {
		c.callErrors[address] = make(map[string]error)
	}
	c.callErrors[address][hexutil.Encode(selector)] = err
}

// AddTransaction mines a transaction into blockNumber and returns its hash.
// The block header is created when missing; the head follows the highest block.
func (c *ChainClient) AddTransaction(from common.Address, to *common.Address, input []byte, blockNumber uint64) common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     c.nonce,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       100_000,
		To:        to,
		Value:     big.NewInt(0),
		Data:      input,
	})

	n := blockNumber
	c.txs[tx.Hash()] = &types.ChainTransaction{
		Tx:          tx,
		From:        from,
		BlockNumber: &n,
		BlockHash:   blockHash(blockNumber),
		Index:       0,
	}
	if _, ok := c.headers[blockNumber]; !ok {
		c.headers[blockNumber] = &ethtypes.Header{
			Number:     new(big.Int).SetUint64(blockNumber),
			Difficulty: big.NewInt(0),
			Time:       1_700_000_000 + blockNumber*12,
		}
	}
	if blockNumber > c.head {
		c.head = blockNumber
	}
	return tx.Hash()
}

// AddPendingTransaction adds a transaction without inclusion info
func (c *ChainClient) AddPendingTransaction(from common.Address, to *common.Address, input []byte) common.Hash {
	hash := c.AddTransaction(from, to, input, 0)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[hash].BlockNumber = nil
	return hash
}

// SetReceipt stores a receipt for hash
func (c *ChainClient) SetReceipt(hash common.Hash, receipt *ethtypes.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[hash] = receipt
}

// DeleteHeader forgets a block header
func (c *ChainClient) DeleteHeader(number uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.headers, number)
}

func (c *ChainClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.ChainTransaction, error) {
	c.TxCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.txs[hash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), types.ErrNotFound)
	}
	out := *tx
	return &out, nil
}

func (c *ChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	c.HeaderCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.head
	if number != nil {
		n = number.Uint64()
	}
	header, ok := c.headers[n]
	if !ok {
		return nil, fmt.Errorf("block %d: %w", n, types.ErrNotFound)
	}
	return ethtypes.CopyHeader(header), nil
}

func (c *ChainClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	c.ReceiptCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), types.ErrNotFound)
	}
	return receipt, nil
}

func (c *ChainClient) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	c.StorageCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if word, ok := c.storage[account][slot]; ok {
		return word, nil
	}
	return make([]byte, 32), nil
}

func (c *ChainClient) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	c.CodeCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[account], nil
}

func (c *ChainClient) CallContract(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	c.CallCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := hexutil.Encode(input)
	if err, ok := c.callErrors[to][key]; ok {
		return nil, err
	}
	if out, ok := c.calls[to][key]; ok {
		return out, nil
	}
	return nil, ErrExecutionReverted
}

func (c *ChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

// Explorer in-memory block explorer. Contracts without an ABI are unverified.
type Explorer struct {
	mu       sync.Mutex
	txs      map[common.Address][]types.ExplorerTransaction
	abis     map[common.Address]string
	listErr  error
	lastList interfaces.ListOptions

	ListCalls atomic.Int64
	ABICalls  atomic.Int64
}

func NewExplorer() *Explorer {
	return &Explorer{
		txs:  make(map[common.Address][]types.ExplorerTransaction),
		abis: make(map[common.Address]string),
	}
}

// SetTransactions sets the listing returned for address, in explorer order
func (e *Explorer) SetTransactions(address common.Address, txs []types.ExplorerTransaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txs[address] = txs
}

func (e *Explorer) SetABI(address common.Address, abiJSON string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abis[address] = abiJSON
}

func (e *Explorer) SetListError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listErr = err
}

// LastListOptions options of the most recent ListTransactions call
func (e *Explorer) LastListOptions() interfaces.ListOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastList
}

func (e *Explorer) ListTransactions(ctx context.Context, address common.Address, opts interfaces.ListOptions) ([]types.ExplorerTransaction, error) {
	e.ListCalls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastList = opts
	if e.listErr != nil {
		return nil, e.listErr
	}
	txs := e.txs[address]
	if opts.Offset > 0 && len(txs) > opts.Offset {
		txs = txs[:opts.Offset]
	}
	out := make([]types.ExplorerTransaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (e *Explorer) GetVerifiedABI(ctx context.Context, address common.Address) (string, error) {
	e.ABICalls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()

	abiJSON, ok := e.abis[address]
	if !ok {
		return "", fmt.Errorf("%s: %w", address.Hex(), types.ErrContractNotVerified)
	}
	return abiJSON, nil
}

// NewHandle builds a chain handle around the doubles
func NewHandle(name string, chainID uint64, client *ChainClient, explorer *Explorer) *chain.Handle {
	return chain.NewHandle(config.ChainConfig{
		Name:    name,
		ChainID: chainID,
		Enabled: true,
	}, client, explorer)
}

// MinimalProxyCode EIP-1167 runtime code delegating to implementation
func MinimalProxyCode(implementation common.Address) []byte {
	code := common.FromHex("0x363d3d373d3d3d363d73")
	code = append(code, implementation.Bytes()...)
	return append(code, common.FromHex("0x5af43d82803e903d91602b57fd5bf3")...)
}

func blockHash(number uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(number + 0xb10c))
}
