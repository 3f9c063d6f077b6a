package signature

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/metrics"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

// DefaultCacheSize number of contracts whose maps are kept
const DefaultCacheSize = 100

type cacheKey struct {
	chainID uint64
	address common.Address
}

type entry struct {
	functions Map
	events    Map
}

// Cache memoizes function and event maps per (chain, contract) with LRU eviction.
// Concurrent misses for one contract may both fetch the ABI; the last insert wins.
type Cache struct {
	lru *lru.Cache[cacheKey, entry]
}

// NewCache creates a cache holding size contracts, DefaultCacheSize when size <= 0
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// FunctionAndEventMaps returns the selector maps of a verified contract.
// Unverified contracts and failed or unparsable ABI fetches wrap types.ErrSignatureLookupFailed.
func (c *Cache) FunctionAndEventMaps(ctx context.Context, h *chain.Handle, address common.Address) (Map, Map, error) {
	key := cacheKey{chainID: h.ID(), address: address}
	if cached, ok := c.lru.Get(key); ok {
		metrics.ObserveSignatureLookup(h.Name(), true)
		return cached.functions, cached.events, nil
	}
	metrics.ObserveSignatureLookup(h.Name(), false)

	abiJSON, err := h.Explorer.GetVerifiedABI(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s on %s: %w", types.ErrSignatureLookupFailed, address.Hex(), h.Name(), err)
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s on %s: invalid abi: %w", types.ErrSignatureLookupFailed, address.Hex(), h.Name(), err)
	}

	functions, events := buildMaps(parsed)
	c.lru.Add(key, entry{functions: functions, events: events})

	logger.WithField("chain", h.Name()).Debugf("Cached %d functions and %d events for %s",
		len(functions), len(events), address.Hex())

	return functions, events, nil
}

// Len number of cached contracts
func (c *Cache) Len() int {
	return c.lru.Len()
}
