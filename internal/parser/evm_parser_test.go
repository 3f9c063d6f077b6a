package parser

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

func TestParseTransactionWithBlockInfo(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	from := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     9,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(50),
		Gas:       60000,
		To:        &to,
		Value:     big.NewInt(1000),
		Data:      common.FromHex("0xa9059cbb0000"),
	})
	block := uint64(1234)

	record, err := NewEVMParser().ParseTransactionWithBlockInfo("eth", &types.ChainTransaction{
		Tx:          tx,
		From:        from,
		BlockNumber: &block,
		BlockHash:   common.HexToHash("0x01"),
		Index:       3,
	}, &ethtypes.Header{Number: big.NewInt(1234), Time: 1700000000})
	require.NoError(t, err)

	assert.Equal(t, "eth", record.Chain)
	assert.Equal(t, uint64(1234), record.BlockNumber)
	assert.Equal(t, common.HexToHash("0x01").Hex(), record.BlockHash)
	assert.Equal(t, from.Hex(), record.From)
	require.NotNil(t, record.To)
	assert.Equal(t, to.Hex(), *record.To)
	assert.Equal(t, types.Selector("0xa9059cbb"), record.MethodID)
	assert.Nil(t, record.MethodSignature)
	assert.Equal(t, "0xa9059cbb0000", record.Input)
	assert.Equal(t, uint64(1700000000), record.Timestamp)
	assert.Equal(t, "50", record.GasPrice)
	assert.Equal(t, "2", record.MaxPriorityFeePerGas)
	assert.Equal(t, "50", record.MaxFeePerGas)
	assert.Equal(t, "1000", record.Value)
	assert.Equal(t, uint64(9), record.Nonce)
	assert.Equal(t, uint(3), record.TransactionIndex)
	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), record.Type)
	assert.Equal(t, tx.Hash().Hex(), record.Hash)
}

func TestParseTransactionContractCreation(t *testing.T) {
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: 1, GasPrice: big.NewInt(7), Gas: 100000, Data: []byte{0x60}})

	record, err := NewEVMParser().ParseTransactionWithBlockInfo("eth", &types.ChainTransaction{Tx: tx}, nil)
	require.NoError(t, err)
	assert.Nil(t, record.To)
	assert.Equal(t, types.EmptySelector, record.MethodID)
	assert.Equal(t, "7", record.GasPrice)

	_, err = NewEVMParser().ParseTransactionWithBlockInfo("eth", nil, nil)
	assert.Error(t, err)
}

func TestParseReceipt(t *testing.T) {
	emitter := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	receipt := &ethtypes.Receipt{
		Status:            ethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: 90000,
		GasUsed:           45000,
		EffectiveGasPrice: big.NewInt(30),
		Logs: []*ethtypes.Log{
			{Address: emitter, Topics: []common.Hash{transferTopic, common.HexToHash("0x02")}, Data: []byte{0x01}, Index: 4},
			{Address: emitter, Data: []byte{}, Index: 5},
		},
	}

	out := NewEVMParser().ParseReceipt(receipt)
	require.NotNil(t, out)
	assert.True(t, out.Status)
	assert.Nil(t, out.ContractAddress)
	assert.Equal(t, "30", out.EffectiveGasPrice)
	assert.Equal(t, uint64(45000), out.GasUsed)
	require.Len(t, out.Logs, 2)

	assert.Equal(t, transferTopic.Hex(), out.Logs[0].EventID)
	assert.Equal(t, emitter.Hex(), out.Logs[0].Address)
	assert.Equal(t, "0x01", out.Logs[0].Data)
	assert.Equal(t, uint(4), out.Logs[0].LogIndex)
	assert.Len(t, out.Logs[0].Topics, 2)

	assert.Equal(t, "0x", out.Logs[1].EventID)
	assert.Empty(t, out.Logs[1].Topics)

	assert.Nil(t, NewEVMParser().ParseReceipt(nil))
}

func TestParseReceiptFailedCreation(t *testing.T) {
	created := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	out := NewEVMParser().ParseReceipt(&ethtypes.Receipt{
		Status:          ethtypes.ReceiptStatusFailed,
		ContractAddress: created,
	})

	assert.False(t, out.Status)
	require.NotNil(t, out.ContractAddress)
	assert.Equal(t, created.Hex(), *out.ContractAddress)
	assert.Empty(t, out.Logs)
	assert.Equal(t, "0", out.EffectiveGasPrice)
}
