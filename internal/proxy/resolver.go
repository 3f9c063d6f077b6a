package proxy

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/metrics"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/sirupsen/logrus"
)

// DetectResult outcome of proxy resolution for one address
type DetectResult = types.DetectResult

type cacheKey struct {
	chainID uint64
	address common.Address
}

// Resolver finds the implementation behind proxy contracts.
// Outcomes, including "not a proxy", are cached per (chain, address) for the
// life of the resolver. The lock only guards the map, so concurrent misses for
// the same address may probe twice; the last write wins.
type Resolver struct {
	probes []Prober

	mu    sync.Mutex
	cache map[cacheKey]DetectResult
}

// NewResolver creates a resolver with the given probes in priority order, DefaultProbes when none
func NewResolver(probes ...Prober) *Resolver {
	if len(probes) == 0 {
		probes = DefaultProbes()
	}
	return &Resolver{
		probes: probes,
		cache:  make(map[cacheKey]DetectResult),
	}
}

// Resolve parses address and resolves it. Only a malformed address is an error.
func (r *Resolver) Resolve(ctx context.Context, h *chain.Handle, address string) (DetectResult, error) {
	addr, err := types.ParseAddress(address)
	if err != nil {
		return DetectResult{}, err
	}
	return r.ResolveAddress(ctx, h, addr), nil
}

// ResolveAddress runs every probe concurrently, waits for all of them and
// returns the first match in priority order. Probe failures count as no match.
// Outcomes computed after ctx is done are returned but not cached.
func (r *Resolver) ResolveAddress(ctx context.Context, h *chain.Handle, address common.Address) DetectResult {
	key := cacheKey{chainID: h.ID(), address: address}
	if cached, ok := r.lookup(key); ok {
		return cached
	}

	targets := make([]*common.Address, len(r.probes))
	var wg sync.WaitGroup
	for i, probe := range r.probes {
		wg.Add(1)
		go func(i int, probe Prober) {
			defer wg.Done()
			target, err := probe.Probe(ctx, h.Client, address)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"chain":    h.Name(),
					"address":  address.Hex(),
					"standard": probe.Standard(),
				}).WithError(err).Debug("Proxy probe failed")
				return
			}
			targets[i] = target
		}(i, probe)
	}
	wg.Wait()

	result := DetectResult{Standard: types.ProxyNone}
	for i, target := range targets {
		if target != nil {
			result = DetectResult{Standard: r.probes[i].Standard(), Target: target}
			break
		}
	}

	// probes cut short by a done context say nothing about the address
	if ctx.Err() != nil {
		return result
	}

	metrics.ObserveProxyDetection(h.Name(), string(result.Standard))
	r.store(key, result)
	return copyResult(result)
}

// Seed stores a known outcome, replacing any cached one
func (r *Resolver) Seed(chainID uint64, address common.Address, result DetectResult) {
	r.store(cacheKey{chainID: chainID, address: address}, result)
}

// Len number of cached outcomes
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Resolver) lookup(key cacheKey) (DetectResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, ok := r.cache[key]
	if !ok {
		return DetectResult{}, false
	}
	return copyResult(result), true
}

func (r *Resolver) store(key cacheKey, result DetectResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = copyResult(result)
}

// copyResult keeps cached targets from being mutated through returned pointers
func copyResult(result DetectResult) DetectResult {
	if result.Target == nil {
		return result
	}
	target := *result.Target
	return DetectResult{Standard: result.Standard, Target: &target}
}
