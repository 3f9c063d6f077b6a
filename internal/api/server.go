package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ioogle/evm-tx-sampler/internal/chain"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChainRegistry resolves chain names used in requests
type ChainRegistry interface {
	Get(name string) (*chain.Handle, error)
	All() []*chain.Handle
}

// SampleService builds the sample of an address
type SampleService interface {
	Sample(ctx context.Context, c *chain.Handle, address string) ([]types.SampleItem, error)
}

// ProxyService resolves proxy implementations
type ProxyService interface {
	Resolve(ctx context.Context, c *chain.Handle, address string) (types.DetectResult, error)
}

// TransactionService hydrates a single transaction
type TransactionService interface {
	Hydrate(ctx context.Context, c *chain.Handle, txHash string) (*types.Transaction, error)
}

// Services dependencies served over HTTP
type Services struct {
	Chains       ChainRegistry
	Sampler      SampleService
	Proxies      ProxyService
	Transactions TransactionService
}

// Server API server
type Server struct {
	config   *config.APIConfig
	timeout  time.Duration
	engine   *gin.Engine
	server   *http.Server
	services Services
}

// NewServer creates a new API server. Requests are cancelled after timeout when it is positive.
func NewServer(cfg *config.APIConfig, timeout time.Duration, services Services) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())

	s := &Server{
		config:   cfg,
		timeout:  timeout,
		engine:   engine,
		services: services,
	}
	s.SetupRoutes()

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetupRoutes sets up routes
func (s *Server) SetupRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public sample endpoint kept at the root for existing front-ends
	s.engine.GET("/sample", RequestTimeout(s.timeout), s.sample)

	authorized := s.engine.Group("/api/v1")
	authorized.Use(AuthMiddleware(s.config.AuthToken), RequestTimeout(s.timeout))
	{
		authorized.GET("/sample", s.sample)
		authorized.GET("/proxy", s.proxy)
		authorized.GET("/transaction", s.transaction)
		authorized.GET("/chains", s.chains)
	}
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("API server starting on %s", addr)
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			logger.Errorf("API server error: %v", err)
		}
	}()

	// Briefly wait to confirm startup
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops the API server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}

	logger.Info("API server stopped")
	return nil
}
