package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"balanceScope/internal/chain"
	"balanceScope/internal/config"
	"balanceScope/internal/engine"
	"balanceScope/internal/source"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Time-weighted balance engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest transfer logs and emit valued balance windows",
		RunE:  runEngine,
	}

	runCmd.Flags().String("rpc", "", "EVM RPC URL")
	runCmd.Flags().String("protocol", "erc20", "protocol instance name (persistence namespace)")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().String("assets", "", "tracked assets JSON file")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per fetch batch")
	runCmd.Flags().Duration("window", time.Hour, "exhausted window duration (>= 1h)")
	runCmd.Flags().Int("max-catchup-windows", 0, "max boundary catch-up iterations per block, 0 = unbounded")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (snapshot store and postgres sink)")
	runCmd.Flags().String("snapshot-file", "", "local snapshot file (overrides Postgres snapshot store)")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "source checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable source checkpointing")
	runCmd.Flags().String("price-api", "", "historical price API base URL")
	runCmd.Flags().String("price-api-key", "", "historical price API key")
	runCmd.Flags().Float64("price-rate", 2.0, "price API requests per second")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("sink", "jsonl", "record sink (jsonl, http, postgres)")
	runCmd.Flags().String("out", "./data/records.jsonl", "output JSONL path for the jsonl sink")
	runCmd.Flags().String("collector-url", "", "collector endpoint for the http sink")
	runCmd.Flags().Int("flush-size", 500, "sink flush size threshold")
	runCmd.Flags().Duration("flush-interval", time.Minute, "sink flush age threshold")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Reprocess normalized balance events from a JSONL file",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input normalized events JSONL")
	replayCmd.Flags().String("protocol", "erc20", "protocol instance name (persistence namespace)")
	replayCmd.Flags().Uint64("chain-id", 0, "chain id for output metadata")
	replayCmd.Flags().String("assets", "", "tracked assets JSON file")
	replayCmd.Flags().Duration("window", time.Hour, "exhausted window duration")
	replayCmd.Flags().Int("max-catchup-windows", 0, "max boundary catch-up iterations per block, 0 = unbounded")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (snapshot store and postgres sink)")
	replayCmd.Flags().String("snapshot-file", "", "local snapshot file (overrides Postgres snapshot store)")
	replayCmd.Flags().String("price-api", "", "historical price API base URL")
	replayCmd.Flags().String("price-api-key", "", "historical price API key")
	replayCmd.Flags().Float64("price-rate", 2.0, "price API requests per second")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("sink", "jsonl", "record sink (jsonl, http, postgres)")
	replayCmd.Flags().String("out", "./data/records.jsonl", "output JSONL path for the jsonl sink")
	replayCmd.Flags().String("collector-url", "", "collector endpoint for the http sink")
	replayCmd.Flags().Int("flush-size", 500, "sink flush size threshold")
	replayCmd.Flags().Duration("flush-interval", time.Minute, "sink flush age threshold")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PriceAPI == "" {
		return fmt.Errorf("price api url is required")
	}

	assets, err := config.LoadAssets(cfg.AssetsFile)
	if err != nil {
		return err
	}
	addressInputs := make([]string, 0, len(assets))
	for assetID := range assets {
		addressInputs = append(addressInputs, assetID)
	}
	addresses, err := source.ParseAddresses(addressInputs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	deps, err := buildEngineDeps(ctx, engineDepsConfig{
		Protocol:      cfg.Protocol,
		PGDSN:         cfg.PGDSN,
		SnapshotFile:  cfg.SnapshotFile,
		PriceAPI:      cfg.PriceAPI,
		PriceAPIKey:   cfg.PriceAPIKey,
		PriceRate:     cfg.PriceRate,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		Sink:          cfg.Sink,
		Out:           cfg.Out,
		CollectorURL:  cfg.CollectorURL,
		FlushSize:     cfg.FlushSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	eng, err := engine.New(engine.Config{
		Protocol:          cfg.Protocol,
		ChainID:           chainID.Uint64(),
		WindowDurationMs:  cfg.Window.Milliseconds(),
		MaxCatchupWindows: cfg.MaxCatchupWindows,
	}, deps.Oracle, deps.Sink, deps.Snapshots, assets, logger)
	if err != nil {
		return err
	}
	if err := eng.Restore(ctx); err != nil {
		return err
	}

	src := source.NewSource(source.RunConfig{
		Protocol:          cfg.Protocol,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, eng, logger)

	logger.Info("engine start",
		zap.String("protocol", cfg.Protocol),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("assets", len(assets)),
		zap.Duration("window", cfg.Window),
		zap.String("sink", cfg.Sink),
	)

	runErr := src.Run(ctx)
	if err := eng.Close(context.Background()); err != nil {
		logger.Error("engine close", zap.Error(err))
	}
	return runErr
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
