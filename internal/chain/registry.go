package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ioogle/evm-tx-sampler/internal/chain/evm"
	"github.com/ioogle/evm-tx-sampler/internal/chain/explorer"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

// Registry chain handles indexed by name and alias
type Registry struct {
	mu      sync.RWMutex
	handles []*Handle
	byName  map[string]*Handle
	closers []func()
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Handle)}
}

// NewRegistryFromConfig dials every enabled chain in the configuration
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	for _, chainCfg := range cfg.EnabledChains() {
		client, err := evm.NewClient(ctx, chainCfg)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("failed to initialize chain %s: %w", chainCfg.Name, err)
		}

		handle := NewHandle(chainCfg, client, explorer.NewClient(chainCfg, cfg.Retry))
		if err := registry.Register(handle); err != nil {
			client.Close()
			registry.Close()
			return nil, err
		}
		registry.closers = append(registry.closers, client.Close)

		logger.WithFields(map[string]interface{}{
			"chain":    chainCfg.Name,
			"chain_id": chainCfg.ChainID,
		}).Info("Chain registered")
	}

	return registry, nil
}

// Register adds a handle; names and aliases are matched case-insensitively
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := []string{strings.ToLower(h.Name())}
	if alias := strings.ToLower(h.Config().Alias); alias != "" && alias != keys[0] {
		keys = append(keys, alias)
	}
	for _, key := range keys {
		if _, exists := r.byName[key]; exists {
			return fmt.Errorf("chain %q already registered", key)
		}
	}
	for _, key := range keys {
		r.byName[key] = h
	}
	r.handles = append(r.handles, h)
	return nil
}

// Get finds a chain by name or alias
func (r *Registry) Get(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownChain, name)
	}
	return h, nil
}

// All returns handles in registration order
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// Close releases the RPC clients created by NewRegistryFromConfig
func (r *Registry) Close() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for _, closeFn := range closers {
		closeFn()
	}
}
