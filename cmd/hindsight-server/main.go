// Command hindsight-server serves the backtest HTTP API backed by the
// parquet candle store and the SQLite run store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hindsight/internal/config"
	"hindsight/internal/httpapi"
	"hindsight/internal/store"
	"hindsight/internal/strategy"
	"hindsight/internal/strategy/builtins"
	"hindsight/internal/util"
)

const defaultConfigFile = "config/hindsight.yaml"

func main() {
	cfgFlag := flag.String("config", "", "path to YAML config")
	flag.Parse()

	// Load config.
	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("HINDSIGHT_CONFIG")
	}
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			cfgPath = defaultConfigFile
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Create stores and register strategies.
	candleStore := store.NewParquetStore(cfg.Storage.DataDir)

	runStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run store: %v", err)
	}
	defer runStore.Close()

	registry := strategy.NewRegistry()
	if err := builtins.Register(registry); err != nil {
		log.Fatalf("registering strategies: %v", err)
	}

	srv := httpapi.NewServer(registry, candleStore, runStore, cfg.Backtest, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("hindsight-server listening",
			"addr", httpServer.Addr,
			"dataDir", cfg.Storage.DataDir,
			"sqlitePath", cfg.Storage.SQLitePath,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down hindsight-server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
