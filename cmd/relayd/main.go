// Package main is the entry point for the relay daemon.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/peppasd/fog-relay/internal/relay"
	"github.com/peppasd/fog-relay/internal/server"
	"github.com/peppasd/fog-relay/internal/storage/sqlite"
)

type config struct {
	addr          string
	dbPath        string
	writeInterval time.Duration
	avgInterval   time.Duration
	avgSample     int
	ingestWorkers int
	ingestQueue   int
}

func loadConfig() config {
	return config{
		addr:          envString("RELAY_ADDR", ":3000"),
		dbPath:        envString("RELAY_DB", "relay.db"),
		writeInterval: envSeconds("RELAY_WRITE_INTERVAL", relay.DefaultWriteInterval),
		avgInterval:   envSeconds("RELAY_AVG_INTERVAL", relay.DefaultAggregateInterval),
		avgSample:     envInt("RELAY_AVG_SAMPLE", relay.DefaultSampleSize),
		ingestWorkers: envInt("RELAY_INGEST_WORKERS", relay.DefaultIngestWorkers),
		ingestQueue:   envInt("RELAY_INGEST_QUEUE", relay.DefaultIngestQueue),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid value", "key", key, "value", v)
		return fallback
	}
	return n
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid value", "key", key, "value", v)
		return fallback
	}
	return time.Duration(n) * time.Second
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found")
	}
	cfg := loadConfig()

	store, err := sqlite.NewFileStore(cfg.dbPath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingest := relay.NewIngestPool(store, logger, cfg.ingestWorkers, cfg.ingestQueue)
	ingest.Start(ctx)

	agg := relay.NewAggregator(store, logger, cfg.avgInterval, cfg.avgSample)
	go agg.Run(ctx)

	srv := server.New(store, ingest, logger, cfg.writeInterval)
	httpServer := http.Server{
		Addr:    cfg.addr,
		Handler: srv.Routes(ctx),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		slog.Info("shutting down")
		cancel()
		httpServer.Close()
	}()

	slog.Info("relay listening", "addr", cfg.addr, "db", cfg.dbPath)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("server closed", "error", err)
	}

	ingest.Wait()
}
