package chain

import (
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
)

// Handle identifies a target chain and carries the clients bound to it.
// It is built once at startup and shared by pointer.
type Handle struct {
	config   config.ChainConfig
	Client   interfaces.ChainClient
	Explorer interfaces.ExplorerClient
}

// NewHandle binds clients to a chain configuration
func NewHandle(cfg config.ChainConfig, client interfaces.ChainClient, explorer interfaces.ExplorerClient) *Handle {
	return &Handle{config: cfg, Client: client, Explorer: explorer}
}

func (h *Handle) ID() uint64 { return h.config.ChainID }

func (h *Handle) Name() string { return h.config.Name }

// Alias display name, falls back to Name
func (h *Handle) Alias() string {
	if h.config.Alias != "" {
		return h.config.Alias
	}
	return h.config.Name
}

func (h *Handle) ExplorerURL() string { return h.config.ExplorerURL }

func (h *Handle) Config() config.ChainConfig { return h.config }
