package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ioogle/evm-tx-sampler/internal/types"
)

// ChainClient node capability consumed by the enrichment pipeline.
// Lookups of unknown objects return an error wrapping types.ErrNotFound.
type ChainClient interface {
	// TransactionByHash gets a transaction with its sender and inclusion info
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.ChainTransaction, error)

	// HeaderByNumber gets a block header
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)

	// TransactionReceipt gets a transaction receipt
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)

	// StorageAt reads a 32-byte storage word at the latest block
	StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error)

	// CodeAt gets deployed bytecode at the latest block
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)

	// CallContract executes eth_call against the latest block
	CallContract(ctx context.Context, to common.Address, input []byte) ([]byte, error)

	// BlockNumber gets the latest block number
	BlockNumber(ctx context.Context) (uint64, error)
}

// SortOrder explorer listing order
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListOptions explorer transaction listing window
type ListOptions struct {
	StartBlock uint64
	EndBlock   uint64
	Page       int
	Offset     int // page size
	Sort       SortOrder
}

// ExplorerClient block explorer capability consumed by the enrichment pipeline
type ExplorerClient interface {
	// ListTransactions lists normal transactions of an address; no transactions is an empty list
	ListTransactions(ctx context.Context, address common.Address, opts ListOptions) ([]types.ExplorerTransaction, error)

	// GetVerifiedABI gets the JSON ABI of a verified contract, types.ErrContractNotVerified otherwise
	GetVerifiedABI(ctx context.Context, address common.Address) (string, error)
}
