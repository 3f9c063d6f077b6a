package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/manager"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

var (
	configPath = flag.String("config", "config.yaml", "path to config file")
	chainName  = flag.String("chain", "", "sample once on this chain and exit (requires -address)")
	address    = flag.String("address", "", "contract address to sample once")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	fmt.Printf("EVM Transaction Sampler v%s\n", version)
	fmt.Printf("Config file: %s\n\n", *configPath)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("=== EVM Transaction Sampler Starting ===")
	logger.Infof("Version: %s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oneShot := *chainName != "" || *address != ""
	if oneShot {
		cfg.API.Enabled = false
	}

	mgr := manager.NewManager(cfg)
	if err := mgr.Initialize(ctx); err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}

	if oneShot {
		err := sampleOnce(ctx, mgr, cfg)
		_ = mgr.Stop()
		if err != nil {
			logger.Fatalf("Sample failed: %v", err)
		}
		return
	}

	if err := mgr.Start(); err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Sampler is running, press Ctrl+C to stop...")

	<-sigChan
	logger.Info("Received stop signal, shutting down...")

	if err := mgr.Stop(); err != nil {
		logger.Errorf("Failed to stop: %v", err)
	}

	logger.Info("=== EVM Transaction Sampler Stopped ===")
}

// sampleOnce prints the sample of -address on -chain as JSON
func sampleOnce(ctx context.Context, mgr *manager.Manager, cfg *config.Config) error {
	if *chainName == "" || *address == "" {
		return fmt.Errorf("both -chain and -address are required")
	}

	handle, err := mgr.Registry().Get(*chainName)
	if err != nil {
		return err
	}

	if cfg.Sampler.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sampler.RequestTimeout)
		defer cancel()
	}

	items, err := mgr.Sampler().Sample(ctx, handle, *address)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
