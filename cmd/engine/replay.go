package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"balanceScope/internal/config"
	"balanceScope/internal/engine"
	"balanceScope/internal/model"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PriceAPI == "" {
		return fmt.Errorf("price api url is required")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}

	assets, err := config.LoadAssets(cfg.AssetsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		ChainID:           cfg.ChainID,
		WindowDurationMs:  cfg.Window.Milliseconds(),
		MaxCatchupWindows: cfg.MaxCatchupWindows,
	}, deps.Oracle, deps.Sink, deps.Snapshots, assets, logger)
	if err != nil {
		return err
	}
	if err := eng.Restore(ctx); err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("input", cfg.Input),
		zap.String("protocol", cfg.Protocol),
		zap.Duration("window", cfg.Window),
	)

	runErr := replayFile(ctx, cfg.Input, eng, logger)
	if err := eng.Close(context.Background()); err != nil {
		logger.Error("engine close", zap.Error(err))
	}
	return runErr
}

// replayFile streams normalized events from a JSONL file, grouping
// consecutive lines of the same height into blocks.
func replayFile(ctx context.Context, path string, eng *engine.Engine, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var block *model.Block
	var total, failed int

	flush := func() error {
		if block == nil {
			return nil
		}
		if err := eng.ProcessBlock(ctx, *block); err != nil {
			return err
		}
		block = nil
		return nil
	}

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.BalanceEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			logger.Warn("decode event record", zap.Error(err))
			continue
		}
		ev, err := record.ToEvent()
		if err != nil {
			failed++
			logger.Warn("normalize event record", zap.Error(err))
			continue
		}

		if block != nil && ev.Height != block.Height {
			if err := flush(); err != nil {
				return err
			}
		}
		if block == nil {
			block = &model.Block{Height: ev.Height, TimestampMs: ev.Timestamp}
		}
		block.Events = append(block.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Info("replay complete", zap.Int("total", total), zap.Int("failed", failed))
	return nil
}
