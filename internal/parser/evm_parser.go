package parser

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ioogle/evm-tx-sampler/internal/types"
)

// EVMParser converts node objects into domain records
type EVMParser struct{}

// NewEVMParser creates a new EVM parser
func NewEVMParser() *EVMParser {
	return &EVMParser{}
}

// ParseTransactionWithBlockInfo builds a transaction record; the timestamp comes from the containing block
func (p *EVMParser) ParseTransactionWithBlockInfo(chainName string, chainTx *types.ChainTransaction, header *ethtypes.Header) (*types.Transaction, error) {
	if chainTx == nil || chainTx.Tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}
	tx := chainTx.Tx

	txData := &types.Transaction{
		BlockHash:            chainTx.BlockHash.Hex(),
		Chain:                chainName,
		From:                 chainTx.From.Hex(),
		Gas:                  tx.Gas(),
		GasPrice:             bigString(tx.GasPrice()),
		MaxPriorityFeePerGas: bigString(tx.GasTipCap()),
		MaxFeePerGas:         bigString(tx.GasFeeCap()),
		Hash:                 tx.Hash().Hex(),
		Input:                hexutil.Encode(tx.Data()),
		MethodID:             types.SelectorFromInput(tx.Data()),
		Nonce:                tx.Nonce(),
		TransactionIndex:     chainTx.Index,
		Type:                 tx.Type(),
		Value:                bigString(tx.Value()),
	}

	if chainTx.BlockNumber != nil {
		txData.BlockNumber = *chainTx.BlockNumber
	}

	if header != nil {
		txData.Timestamp = header.Time
		if txData.BlockHash == (common.Hash{}).Hex() {
			txData.BlockHash = header.Hash().Hex()
		}
	}

	if to := tx.To(); to != nil {
		s := to.Hex()
		txData.To = &s
	}

	return txData, nil
}

// ParseReceipt builds a receipt record; event signatures are left unresolved
func (p *EVMParser) ParseReceipt(receipt *ethtypes.Receipt) *types.Receipt {
	if receipt == nil {
		return nil
	}

	out := &types.Receipt{
		CumulativeGasUsed: receipt.CumulativeGasUsed,
		EffectiveGasPrice: bigString(receipt.EffectiveGasPrice),
		GasUsed:           receipt.GasUsed,
		Status:            receipt.Status == ethtypes.ReceiptStatusSuccessful,
		Logs:              p.ParseLogs(receipt.Logs),
	}

	if receipt.ContractAddress != (common.Address{}) {
		s := receipt.ContractAddress.Hex()
		out.ContractAddress = &s
	}

	return out
}

// ParseLogs parses transaction logs in receipt order
func (p *EVMParser) ParseLogs(logs []*ethtypes.Log) []types.Log {
	result := make([]types.Log, 0, len(logs))

	for _, log := range logs {
		if log == nil {
			continue
		}
		logData := types.Log{
			Address:  log.Address.Hex(),
			Data:     hexutil.Encode(log.Data),
			EventID:  EventID(log.Topics),
			LogIndex: log.Index,
			Topics:   make([]string, 0, len(log.Topics)),
		}

		for _, topic := range log.Topics {
			logData.Topics = append(logData.Topics, topic.Hex())
		}

		result = append(result, logData)
	}

	return result
}

// EventID is the first topic, or "0x" for anonymous logs
func EventID(topics []common.Hash) string {
	if len(topics) == 0 {
		return string(types.EmptySelector)
	}
	return topics[0].Hex()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
