package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Transaction enriched transaction record
type Transaction struct {
	BlockHash            string        `json:"block_hash"`
	BlockNumber          uint64        `json:"block_number"`
	Chain                string        `json:"chain"`
	From                 string        `json:"from"`
	Gas                  uint64        `json:"gas"`
	GasPrice             string        `json:"gas_price"`
	MaxPriorityFeePerGas string        `json:"max_priority_fee_per_gas"`
	MaxFeePerGas         string        `json:"max_fee_per_gas"`
	Hash                 string        `json:"hash"`
	Input                string        `json:"input"`
	MethodID             Selector      `json:"method_id"`
	MethodSignature      *string       `json:"method_signature"` // nil when no verified ABI entry matches MethodID
	Nonce                uint64        `json:"nonce"`
	Timestamp            uint64        `json:"timestamp"`
	To                   *string       `json:"to"` // nil for contract creation
	TransactionIndex     uint          `json:"transaction_index"`
	Type                 uint8         `json:"type"`
	Value                string        `json:"value"`
	Receipt              *Receipt      `json:"receipt"`
	Proxy                *DetectResult `json:"proxy,omitempty"` // Resolution used for signature lookup
}

// Receipt enriched transaction receipt
type Receipt struct {
	ContractAddress   *string `json:"contract_address"` // Set only for contract creation
	CumulativeGasUsed uint64  `json:"cumulative_gas_used"`
	EffectiveGasPrice string  `json:"effective_gas_price"`
	GasUsed           uint64  `json:"gas_used"`
	Status            bool    `json:"status"`
	Logs              []Log   `json:"logs"`
}

// Log enriched event log
type Log struct {
	Address        string   `json:"address"`
	Data           string   `json:"data"`
	EventID        string   `json:"event_id"` // First topic, or "0x" for anonymous logs
	EventSignature *string  `json:"event_signature"`
	LogIndex       uint     `json:"log_index"`
	Topics         []string `json:"topics"`
}

// ChainTransaction transaction as returned by the node, with its inclusion info
type ChainTransaction struct {
	Tx          *ethtypes.Transaction
	From        common.Address
	BlockNumber *uint64 // nil while pending
	BlockHash   common.Hash
	Index       uint
}

// Pending reports whether the transaction is not yet included in a block
func (t *ChainTransaction) Pending() bool {
	return t.BlockNumber == nil
}

// ExplorerTransaction raw transaction record listed by a block explorer
type ExplorerTransaction struct {
	Hash        string
	BlockNumber uint64
	From        string
	To          string
	Input       string
	MethodID    string // Explorer supplied method id, may be empty
	Timestamp   uint64
	IsError     bool
}

// Selector returns the explorer method id when it is a well-formed selector, otherwise derives it from input
func (t ExplorerTransaction) Selector() Selector {
	id := strings.ToLower(strings.TrimSpace(t.MethodID))
	if raw, err := hexutil.Decode(id); err == nil && len(raw) == SelectorLength {
		return Selector(id)
	}
	return SelectorFromHex(t.Input)
}

// SampleItem exposed summary of one sampled transaction
type SampleItem struct {
	Chain           string        `json:"chain"`
	TxHash          string        `json:"tx_hash"`
	MethodID        Selector      `json:"method_id"`
	MethodSignature *string       `json:"method_signature"`
	Events          []SampleEvent `json:"events"`
}

// SampleEvent event summary inside a SampleItem
type SampleEvent struct {
	EventID        string  `json:"event_id"`
	EventSignature *string `json:"event_signature"`
}
