package main

import (
	"context"
	"fmt"
	"time"

	"hb-market-api/internal/api"
	"hb-market-api/internal/broker"
	"hb-market-api/internal/history"
	"hb-market-api/internal/history/historyobs"
	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/logger"
	"hb-market-api/internal/server"
	"hb-market-api/internal/snapshot"
	"hb-market-api/internal/store"
	"hb-market-api/internal/supervisor"

	"github.com/joho/godotenv"
)

type app struct {
	supervisor interfaces.Supervisor
	server     *server.Server
}

// initializeSystem loads the environment and initializes the logger/tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the service configuration and the instrument catalog.
func loadConfig(ctx context.Context) (*store.Config, *store.Catalog, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, nil, err
	}

	catalog, err := store.LoadCatalog(cfg.TickersFile)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load instrument catalog", err)
		return nil, nil, err
	}

	logger.Info(ctx, "Configuration loaded",
		"mode", cfg.Mode,
		"tickers_file", cfg.TickersFile,
		"option_prefixes", catalog.OptionPrefixes,
		"stock_prefixes", catalog.StockPrefixes,
	)
	return cfg, catalog, nil
}

// buildApp wires the snapshot store, feed client, supervisor, history
// provider and HTTP server together. The store is constructed here and
// injected everywhere; nothing holds ambient global state.
func buildApp(ctx context.Context, cfg *store.Config, catalog *store.Catalog) *app {
	snap := snapshot.New()

	feed := broker.NewFeedClient(cfg, catalog)
	if cfg.Mode == "SIM" {
		logger.Warn(ctx, "Running in SIM mode - market data is simulated")
	}

	sup := supervisor.New(supervisor.Params{
		ReconnectInterval:    time.Duration(cfg.ReconnectIntervalSeconds) * time.Second,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		HealthCheckInterval:  time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second,
		StaleAfter:           time.Duration(cfg.StaleAfterMinutes) * time.Minute,
	}, feed, snap, catalog)

	hist := initializeHistory(cfg)

	return &app{
		supervisor: sup,
		server:     server.New(snap, sup, hist, catalog, cfg),
	}
}

// initializeHistory returns the history provider for the configured mode,
// wrapped with observability middleware.
func initializeHistory(cfg *store.Config) interfaces.HistoryProvider {
	var provider interfaces.HistoryProvider
	if cfg.Mode == "LIVE" {
		client := api.NewClient(
			api.WithBaseURL(cfg.Broker.BaseURL),
			api.WithTimeout(30*time.Second),
		)
		provider = history.NewProvider(client, cfg.History.RequestsPerSecond, cfg.History.Burst)
	} else {
		provider = history.NewSimProvider()
	}

	return historyobs.Wrap(provider)
}
