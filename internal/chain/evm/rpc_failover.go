package evm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"golang.org/x/time/rate"
)

// RPCEndpoint RPC endpoint structure
type RPCEndpoint struct {
	URL          string
	Client       *ethclient.Client
	RPCClient    *rpc.Client
	FailCount    int32
	LastFailTime time.Time
	IsHealthy    bool
	rateLimiter  *rate.Limiter
}

// FailoverRPCClient RPC client that rotates across backup endpoints
type FailoverRPCClient struct {
	endpoints     []*RPCEndpoint
	currentIndex  int32
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	maxFailCount  int32
	recoveryTime  time.Duration
	healthCheckCh chan struct{}
}

// NewFailoverRPCClient dials the primary and backup endpoints.
// rateLimit is requests per second per endpoint; 0 picks a provider based default.
func NewFailoverRPCClient(ctx context.Context, primaryURL string, backupURLs []string, rateLimit float64) (*FailoverRPCClient, error) {
	ctx, cancel := context.WithCancel(ctx)
	client := &FailoverRPCClient{
		endpoints:     make([]*RPCEndpoint, 0, 1+len(backupURLs)),
		ctx:           ctx,
		cancel:        cancel,
		maxFailCount:  3,
		recoveryTime:  30 * time.Second,
		healthCheckCh: make(chan struct{}, 1),
	}

	allURLs := append([]string{primaryURL}, backupURLs...)
	for _, url := range allURLs {
		endpoint, err := client.createEndpoint(url, rateLimit)
		if err != nil {
			logger.Warnf("Failed to connect to RPC endpoint %s: %v", url, err)
			continue
		}
		client.endpoints = append(client.endpoints, endpoint)
		logger.Infof("Connected to RPC endpoint: %s (rate limit %.1f/s)", url, float64(endpoint.rateLimiter.Limit()))
	}

	if len(client.endpoints) == 0 {
		cancel()
		return nil, fmt.Errorf("failed to connect to any RPC endpoint")
	}

	go client.healthCheckLoop()

	return client, nil
}

// createEndpoint creates a single endpoint
func (c *FailoverRPCClient) createEndpoint(url string, rateLimit float64) (*RPCEndpoint, error) {
	rpcClient, err := rpc.DialContext(c.ctx, url)
	if err != nil {
		return nil, err
	}

	return &RPCEndpoint{
		URL:         url,
		Client:      ethclient.NewClient(rpcClient),
		RPCClient:   rpcClient,
		IsHealthy:   true,
		rateLimiter: newEndpointLimiter(url, rateLimit),
	}, nil
}

// newEndpointLimiter uses the configured limit, falling back to provider free tiers:
// Alchemy ~25 req/s, Infura ~8 req/s, public nodes 5 req/s
func newEndpointLimiter(url string, rateLimit float64) *rate.Limiter {
	if rateLimit > 0 {
		burst := int(rateLimit)
		if burst < 1 {
			burst = 1
		}
		return rate.NewLimiter(rate.Limit(rateLimit), burst)
	}

	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "alchemy"):
		return rate.NewLimiter(rate.Limit(25), 30)
	case strings.Contains(lower, "infura"):
		return rate.NewLimiter(rate.Limit(8), 10)
	default:
		return rate.NewLimiter(rate.Limit(5), 10)
	}
}

// GetCurrentEndpoint gets the current active endpoint
func (c *FailoverRPCClient) GetCurrentEndpoint() *RPCEndpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := atomic.LoadInt32(&c.currentIndex)
	if idx >= int32(len(c.endpoints)) {
		idx = 0
	}
	return c.endpoints[idx]
}

// GetClient gets the current ethclient
func (c *FailoverRPCClient) GetClient() *ethclient.Client {
	return c.GetCurrentEndpoint().Client
}

// GetRPCClient gets the current raw RPC client
func (c *FailoverRPCClient) GetRPCClient() *rpc.Client {
	return c.GetCurrentEndpoint().RPCClient
}

// ReportError counts a transport failure against the current endpoint, which may trigger failover
func (c *FailoverRPCClient) ReportError(err error) {
	if err == nil {
		return
	}

	endpoint := c.GetCurrentEndpoint()
	failCount := atomic.AddInt32(&endpoint.FailCount, 1)

	c.mu.Lock()
	endpoint.LastFailTime = time.Now()
	c.mu.Unlock()

	logger.Warnf("RPC endpoint %s error (fail count: %d): %v", endpoint.URL, failCount, err)

	if failCount >= c.maxFailCount {
		c.switchToNextEndpoint()
	}
}

// ReportSuccess resets the fail count of the current endpoint
func (c *FailoverRPCClient) ReportSuccess() {
	endpoint := c.GetCurrentEndpoint()
	atomic.StoreInt32(&endpoint.FailCount, 0)
}

// switchToNextEndpoint switches to the next healthy endpoint
func (c *FailoverRPCClient) switchToNextEndpoint() {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentIdx := atomic.LoadInt32(&c.currentIndex)
	c.endpoints[currentIdx].IsHealthy = false

	for i := 1; i < len(c.endpoints); i++ {
		nextIdx := (int(currentIdx) + i) % len(c.endpoints)
		if c.endpoints[nextIdx].IsHealthy {
			atomic.StoreInt32(&c.currentIndex, int32(nextIdx))
			logger.Warnf("Switched RPC endpoint from %s to %s",
				c.endpoints[currentIdx].URL, c.endpoints[nextIdx].URL)

			select {
			case c.healthCheckCh <- struct{}{}:
			default:
			}
			return
		}
	}

	// No other healthy endpoint, keep using the current one
	logger.Errorf("No healthy RPC endpoint available, retrying %s", c.endpoints[currentIdx].URL)
	c.endpoints[currentIdx].IsHealthy = true
	atomic.StoreInt32(&c.endpoints[currentIdx].FailCount, 0)
}

// healthCheckLoop health check loop
func (c *FailoverRPCClient) healthCheckLoop() {
	ticker := time.NewTicker(c.recoveryTime)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.checkUnhealthyEndpoints()
		case <-c.healthCheckCh:
			c.checkUnhealthyEndpoints()
		}
	}
}

// checkUnhealthyEndpoints checks if unhealthy endpoints have recovered
func (c *FailoverRPCClient) checkUnhealthyEndpoints() {
	// collect candidates under the lock, probe them without it
	c.mu.RLock()
	candidates := make([]*RPCEndpoint, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		if !endpoint.IsHealthy && time.Since(endpoint.LastFailTime) > c.recoveryTime {
			candidates = append(candidates, endpoint)
		}
	}
	c.mu.RUnlock()

	for _, endpoint := range candidates {
		ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
		_, err := endpoint.Client.BlockNumber(ctx)
		cancel()
		if err != nil {
			continue
		}

		c.mu.Lock()
		endpoint.IsHealthy = true
		atomic.StoreInt32(&endpoint.FailCount, 0)
		c.mu.Unlock()
		logger.Infof("RPC endpoint %s recovered", endpoint.URL)
	}
}

// Close stops the health check and closes all connections
func (c *FailoverRPCClient) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, endpoint := range c.endpoints {
		if endpoint.Client != nil {
			endpoint.Client.Close()
		}
	}
}

// waitForRateLimit waits for the current endpoint's limiter
func (c *FailoverRPCClient) waitForRateLimit(ctx context.Context) error {
	endpoint := c.GetCurrentEndpoint()
	if endpoint.rateLimiter != nil {
		return endpoint.rateLimiter.Wait(ctx)
	}
	return nil
}
