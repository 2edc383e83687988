package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"balanceScope/internal/pricing"
	"balanceScope/internal/sink"
	"balanceScope/internal/snapshot"
	"balanceScope/internal/storage/postgres"
)

type engineDepsConfig struct {
	Protocol      string
	PGDSN         string
	SnapshotFile  string
	PriceAPI      string
	PriceAPIKey   string
	PriceRate     float64
	MaxRetries    int
	RetryBackoff  time.Duration
	Sink          string
	Out           string
	CollectorURL  string
	FlushSize     int
	FlushInterval time.Duration
}

// engineDeps bundles the collaborators both commands wire the same way.
type engineDeps struct {
	Oracle    *pricing.Oracle
	Sink      *sink.Sink
	Snapshots snapshot.Store

	store *postgres.Store
}

func (d *engineDeps) Close() {
	if d.store != nil {
		d.store.Close()
	}
}

func buildEngineDeps(ctx context.Context, cfg engineDepsConfig, logger *zap.Logger) (*engineDeps, error) {
	deps := &engineDeps{}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.store = store
	}

	switch {
	case cfg.SnapshotFile != "":
		deps.Snapshots = &snapshot.FileStore{Path: cfg.SnapshotFile}
	case deps.store != nil:
		deps.Snapshots = &snapshot.DBStore{Store: deps.store}
	default:
		logger.Warn("no snapshot store configured, restarts will replay from scratch")
	}

	priceSource := pricing.NewHTTPSource(cfg.PriceAPI, cfg.PriceAPIKey, cfg.PriceRate, 10*time.Second)
	deps.Oracle = pricing.NewOracle(priceSource, pricing.NewCache(), pricing.Backoff{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBackoff,
	}, logger)

	var delivery sink.Delivery
	switch cfg.Sink {
	case "jsonl":
		delivery = sink.NewJSONLDelivery(cfg.Out)
	case "http":
		if cfg.CollectorURL == "" {
			deps.Close()
			return nil, fmt.Errorf("collector url is required for the http sink")
		}
		delivery = sink.NewHTTPDelivery(cfg.CollectorURL, 30*time.Second)
	case "postgres":
		if deps.store == nil {
			deps.Close()
			return nil, fmt.Errorf("pg dsn is required for the postgres sink")
		}
		delivery = &sink.PostgresDelivery{Store: deps.store}
	default:
		deps.Close()
		return nil, fmt.Errorf("unknown sink: %s", cfg.Sink)
	}

	deps.Sink = sink.New(delivery, cfg.FlushSize, cfg.FlushInterval, logger)
	return deps, nil
}
