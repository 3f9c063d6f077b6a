package manager

import (
	"context"
	"fmt"

	"github.com/ioogle/evm-tx-sampler/internal/api"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/hydrator"
	"github.com/ioogle/evm-tx-sampler/internal/proxy"
	"github.com/ioogle/evm-tx-sampler/internal/sampler"
	"github.com/ioogle/evm-tx-sampler/internal/signature"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

// Manager owns the chain registry, the sampling pipeline and the API server
type Manager struct {
	config     *config.Config
	registry   *chain.Registry
	resolver   *proxy.Resolver
	signatures *signature.Cache
	hydrator   *hydrator.Hydrator
	sampler    *sampler.Sampler
	apiServer  *api.Server
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewManager creates a new Manager
func NewManager(cfg *config.Config) *Manager {
	return &Manager{config: cfg}
}

// Initialize builds every component. ctx bounds the lifetime of the RPC clients.
func (m *Manager) Initialize(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	// Initialize chains
	if err := m.initializeChains(); err != nil {
		return fmt.Errorf("failed to initialize chains: %w", err)
	}

	// Initialize sampling pipeline
	if err := m.initializePipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	// Initialize API server
	m.initializeAPIServer()

	return nil
}

// initializeChains dials every enabled chain
func (m *Manager) initializeChains() error {
	registry, err := chain.NewRegistryFromConfig(m.ctx, m.config)
	if err != nil {
		return err
	}
	m.registry = registry

	logger.Infof("%d chain(s) initialized", len(registry.All()))
	return nil
}

// initializePipeline creates the shared caches and the sampler on top of them
func (m *Manager) initializePipeline() error {
	signatures, err := signature.NewCache(m.config.Sampler.SignatureCacheSize)
	if err != nil {
		return err
	}

	m.signatures = signatures
	m.resolver = proxy.NewResolver()
	m.hydrator = hydrator.New(m.resolver, m.signatures)
	m.sampler = sampler.New(m.hydrator, m.config.Sampler.PageSize, m.config.Sampler.WorkerCount)

	logger.Infof("Sampler initialized (page size %d, workers %d, signature cache %d)",
		m.config.Sampler.PageSize, m.config.Sampler.WorkerCount, m.config.Sampler.SignatureCacheSize)
	return nil
}

// initializeAPIServer initializes API server
func (m *Manager) initializeAPIServer() {
	if !m.config.API.Enabled {
		logger.Info("API service not enabled")
		return
	}

	m.apiServer = api.NewServer(&m.config.API, m.config.Sampler.RequestTimeout, api.Services{
		Chains:       m.registry,
		Sampler:      m.sampler,
		Proxies:      m.resolver,
		Transactions: m.hydrator,
	})

	logger.Infof("API server initialized (auth_token configured: %v)", m.config.API.AuthToken != "")
}

// Start starts the API server
func (m *Manager) Start() error {
	if m.apiServer == nil {
		return nil
	}

	if err := m.apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	logger.Infof("API server started at %s:%d", m.config.API.Host, m.config.API.Port)
	return nil
}

// Stop stops the API server and closes the RPC clients
func (m *Manager) Stop() error {
	if m.apiServer != nil {
		if err := m.apiServer.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop API server")
		}
	}

	if m.registry != nil {
		m.registry.Close()
	}

	if m.cancel != nil {
		m.cancel()
	}

	logger.Info("Sampler stopped, resources cleaned up")
	return nil
}

// Registry returns the configured chains
func (m *Manager) Registry() *chain.Registry {
	return m.registry
}

// Sampler returns the shared sampler
func (m *Manager) Sampler() *sampler.Sampler {
	return m.sampler
}
