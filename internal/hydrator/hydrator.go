package hydrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/parser"
	"github.com/ioogle/evm-tx-sampler/internal/proxy"
	"github.com/ioogle/evm-tx-sampler/internal/signature"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Hydrator assembles enriched transactions from a hash
type Hydrator struct {
	resolver   *proxy.Resolver
	signatures *signature.Cache
	parser     *parser.EVMParser
}

// New creates a hydrator sharing the given caches
func New(resolver *proxy.Resolver, signatures *signature.Cache) *Hydrator {
	return &Hydrator{
		resolver:   resolver,
		signatures: signatures,
		parser:     parser.NewEVMParser(),
	}
}

// Hydrate fetches a transaction with its block timestamp and receipt, and resolves
// method and event signatures against the implementation behind the recipient.
// A missing receipt leaves Receipt nil; every other failure is returned.
func (h *Hydrator) Hydrate(ctx context.Context, c *chain.Handle, txHash string) (*types.Transaction, error) {
	hash, err := types.ParseHash(txHash)
	if err != nil {
		return nil, err
	}

	chainTx, err := c.Client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash.Hex(), err)
	}
	if chainTx.Pending() {
		return nil, fmt.Errorf("transaction %s is pending: %w", hash.Hex(), types.ErrNotFound)
	}

	header, err := c.Client.HeaderByNumber(ctx, new(big.Int).SetUint64(*chainTx.BlockNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", *chainTx.BlockNumber, err)
	}

	tx, err := h.parser.ParseTransactionWithBlockInfo(c.Name(), chainTx, header)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction %s: %w", hash.Hex(), err)
	}

	var events signature.Map
	if to := chainTx.Tx.To(); to != nil {
		detect := h.resolver.ResolveAddress(ctx, c, *to)
		tx.Proxy = &detect

		lookup := *to
		if detect.Target != nil {
			lookup = *detect.Target
		}

		var functions signature.Map
		functions, events, err = h.signatures.FunctionAndEventMaps(ctx, c, lookup)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve signatures of %s: %w", hash.Hex(), err)
		}
		if !tx.MethodID.IsEmpty() {
			tx.MethodSignature = functions.LookupPtr(string(tx.MethodID))
		}

		logger.WithFields(logrus.Fields{
			"chain":    c.Name(),
			"tx_hash":  tx.Hash,
			"to":       to.Hex(),
			"standard": detect.Standard,
			"lookup":   lookup.Hex(),
		}).Debug("Resolved signature target")
	}

	receipt, err := c.Client.TransactionReceipt(ctx, hash)
	switch {
	case errors.Is(err, types.ErrNotFound):
		logger.WithField("chain", c.Name()).Debugf("Receipt of %s not found", hash.Hex())
	case err != nil:
		return nil, fmt.Errorf("failed to get receipt of %s: %w", hash.Hex(), err)
	default:
		tx.Receipt = h.parser.ParseReceipt(receipt)
		for i := range tx.Receipt.Logs {
			log := &tx.Receipt.Logs[i]
			log.EventSignature = events.LookupPtr(log.EventID)
		}
	}

	return tx, nil
}
