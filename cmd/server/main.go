package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meowzlabs/presale/service/config"
	"github.com/meowzlabs/presale/service/metrics"
	natspkg "github.com/meowzlabs/presale/service/nats"
	"github.com/meowzlabs/presale/service/presale"
	"github.com/meowzlabs/presale/service/server"
	"github.com/meowzlabs/presale/service/solana"
	"github.com/meowzlabs/presale/service/vault"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client with endpoint failover
	// Note: For premium RPC endpoints, include API key in the URL
	solanaClient, err := solana.Dial(ctx, cfg.RPCEndpoints, m, logger)
	if err != nil {
		logger.Error("no reachable Solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	logger.Info("initialized solana RPC client", "endpoint", solanaClient.Endpoint())

	// Initialize vault signing authority and ensure its token account exists
	signer, err := vault.NewLocalSigner(cfg.VaultPrivateKey)
	if err != nil {
		logger.Error("invalid vault key", "error", err)
		os.Exit(1)
	}
	bootstrapper := vault.NewBootstrapper(solanaClient, signer, cfg.TokenMint, cfg.TokenDecimals, logger)
	state, err := bootstrapper.EnsureAccount(ctx)
	if err != nil {
		logger.Error("vault bootstrap failed", "error", err)
		os.Exit(1)
	}
	balance, _ := state.Balance.Float64()
	m.SetVaultTokenBalance(balance)
	logger.Info("vault ready",
		"token_account", state.Address.String(),
		"balance", state.Balance.String(),
	)

	// Initialize NATS publisher. When no NATS URL is configured the engine
	// runs with an in-memory publisher and events are simply not exported.
	var publisher natspkg.Publisher
	if cfg.NATSURL != "" {
		publisher, err = natspkg.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		publisher = natspkg.NewMockPublisher()
		logger.Warn("NATS_URL not set, purchase events will not be published")
	}
	defer publisher.Close()

	// Wire the purchase pipeline
	engine := presale.NewEngine(presale.EngineParams{
		Ledger:              solanaClient,
		Signer:              signer,
		Publisher:           publisher,
		Metrics:             m,
		Logger:              logger,
		Mint:                cfg.TokenMint,
		Decimals:            cfg.TokenDecimals,
		TokenSymbol:         cfg.TokenSymbol,
		UnitPrice:           cfg.PricePerToken,
		Min:                 cfg.MinPurchase,
		Max:                 cfg.MaxPurchase,
		Tolerance:           cfg.SlippageTolerance,
		ConfirmMaxAttempts:  cfg.ConfirmMaxAttempts,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
		RateLimitWindow:     cfg.RateLimitWindow,
		RateLimitMax:        cfg.RateLimitMaxRequests,
		ExplorerURL:         cfg.ExplorerURL,
	})

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, engine, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
