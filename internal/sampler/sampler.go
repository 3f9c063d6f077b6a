package sampler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/hydrator"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/metrics"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/ioogle/evm-tx-sampler/pkg/workerpool"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPageSize explorer transactions considered per sample
	DefaultPageSize = 1000

	firstPage = 1
)

// Sampler builds one representative transaction per call selector of an address
type Sampler struct {
	hydrator    *hydrator.Hydrator
	pageSize    int
	workerCount int
}

// New creates a sampler. pageSize <= 0 uses DefaultPageSize; workerCount <= 1 hydrates sequentially.
func New(h *hydrator.Hydrator, pageSize, workerCount int) *Sampler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Sampler{hydrator: h, pageSize: pageSize, workerCount: workerCount}
}

// TransactionSamples lists the address's most recent transactions, keeps the first one
// seen per selector in explorer order (newest first), orders the survivors by block
// ascending and hydrates them. The first hydration failure aborts the sample.
func (s *Sampler) TransactionSamples(ctx context.Context, c *chain.Handle, address string) ([]*types.Transaction, error) {
	addr, err := types.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	latest, err := c.Client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}

	history, err := c.Explorer.ListTransactions(ctx, addr, interfaces.ListOptions{
		StartBlock: 0,
		EndBlock:   latest,
		Page:       firstPage,
		Offset:     s.pageSize,
		Sort:       interfaces.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s: %w", addr.Hex(), err)
	}

	selected := SelectRepresentatives(history)

	logger.WithFields(logrus.Fields{
		"chain":    c.Name(),
		"address":  addr.Hex(),
		"listed":   len(history),
		"selected": len(selected),
	}).Info("Sampling transactions")

	if s.workerCount == 1 {
		samples := make([]*types.Transaction, 0, len(selected))
		for _, record := range selected {
			tx, err := s.hydrator.Hydrate(ctx, c, record.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to hydrate %s: %w", record.Hash, err)
			}
			samples = append(samples, tx)
		}
		return samples, nil
	}

	return workerpool.Map(ctx, s.workerCount, selected, func(ctx context.Context, record types.ExplorerTransaction) (*types.Transaction, error) {
		tx, err := s.hydrator.Hydrate(ctx, c, record.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate %s: %w", record.Hash, err)
		}
		return tx, nil
	})
}

// SelectRepresentatives drops transactions without input, keeps the first record per
// selector in the given order and sorts the result by block number ascending
func SelectRepresentatives(history []types.ExplorerTransaction) []types.ExplorerTransaction {
	seen := make(map[types.Selector]struct{}, len(history))
	selected := make([]types.ExplorerTransaction, 0, len(history))

	for _, record := range history {
		if types.HasEmptyInput(record.Input) {
			continue
		}
		selector := record.Selector()
		if _, ok := seen[selector]; ok {
			continue
		}
		seen[selector] = struct{}{}
		selected = append(selected, record)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].BlockNumber < selected[j].BlockNumber
	})
	return selected
}

// Sample runs TransactionSamples and summarizes each transaction, keeping only
// the logs emitted by address
func (s *Sampler) Sample(ctx context.Context, c *chain.Handle, address string) (items []types.SampleItem, err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveSample(c.Name(), err, len(items), started)
	}()

	txs, err := s.TransactionSamples(ctx, c, address)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(address)
	items = make([]types.SampleItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, Summarize(tx, addr))
	}
	return items, nil
}

// Summarize projects a transaction to its exposed summary
func Summarize(tx *types.Transaction, emitter common.Address) types.SampleItem {
	item := types.SampleItem{
		Chain:           tx.Chain,
		TxHash:          tx.Hash,
		MethodID:        tx.MethodID,
		MethodSignature: tx.MethodSignature,
		Events:          []types.SampleEvent{},
	}

	if tx.Receipt == nil {
		return item
	}
	for _, log := range tx.Receipt.Logs {
		if !strings.EqualFold(log.Address, emitter.Hex()) {
			continue
		}
		item.Events = append(item.Events, types.SampleEvent{
			EventID:        log.EventID,
			EventSignature: log.EventSignature,
		})
	}
	return item
}
