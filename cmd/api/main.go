package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hb-market-api/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	cfg, catalog, err := loadConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}

	app := buildApp(ctx, cfg, catalog)

	if err := app.supervisor.Start(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start supervisor", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: app.server.Router(),
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", cfg.ListenAddr, "mode", cfg.Mode)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "HTTP server failed", err)
			cancel()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigc:
		logger.Info(ctx, "Shutting down...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "HTTP shutdown incomplete", "error", err)
	}
	app.supervisor.Stop(shutdownCtx)

	if err := logger.Shutdown(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}
