package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"balanceScope/internal/chain"
	"balanceScope/internal/model"
)

// RunConfig holds runtime settings for the block source.
type RunConfig struct {
	Protocol          string
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Handler consumes normalized blocks in strictly ascending height order.
type Handler interface {
	ProcessBlock(ctx context.Context, block model.Block) error
}

// Source streams ERC-20 Transfer logs for the tracked assets, groups them
// into normalized per-block event batches, and feeds them to the handler.
type Source struct {
	cfg        RunConfig
	chain      *chain.Client
	handler    Handler
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

func NewSource(cfg RunConfig, chainClient *chain.Client, handler Handler, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		cfg:        cfg,
		chain:      chainClient,
		handler:    handler,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.Protocol, cfg.CheckpointEnabled),
	}
}

// Run executes the ingest loop. Upstream failures after retries are fatal:
// the surrounding process owns restart policy.
func (s *Source) Run(ctx context.Context) error {
	if s.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if s.handler == nil {
		return fmt.Errorf("handler is nil")
	}
	if s.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(s.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one asset address is required")
	}

	from := s.cfg.FromBlock
	to := s.cfg.ToBlock
	if to == 0 {
		latest, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if s.checkpoint != nil {
		cp, ok, err := s.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			s.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		s.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.logger.Info("fetch transfers", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		blocks, err := s.groupIntoBlocks(ctx, logs)
		if err != nil {
			return err
		}

		events := 0
		for _, block := range blocks {
			if err := s.handler.ProcessBlock(ctx, block); err != nil {
				return fmt.Errorf("process block %d: %w", block.Height, err)
			}
			events += len(block.Events)
		}

		// Close the range with an empty block so idle pairs keep flushing
		// through quiet stretches of the chain.
		if len(blocks) == 0 || blocks[len(blocks)-1].Height < blockRange.To {
			ts, err := s.blockTimestampWithRetry(ctx, blockRange.To)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", blockRange.To, err)
			}
			empty := model.Block{Height: blockRange.To, TimestampMs: int64(ts) * 1000}
			if err := s.handler.ProcessBlock(ctx, empty); err != nil {
				return fmt.Errorf("process block %d: %w", blockRange.To, err)
			}
		}

		if s.checkpoint != nil {
			if err := s.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		s.logger.Info("range complete",
			zap.Int("events", events),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

// groupIntoBlocks normalizes transfer logs into per-block batches sorted by
// ascending height, events ordered by log index within a block.
func (s *Source) groupIntoBlocks(ctx context.Context, logs []types.Log) ([]model.Block, error) {
	byHeight := make(map[uint64][]model.BalanceEvent)
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ts, err := s.blockTimestampWithRetry(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		ev, ok := NormalizeTransfer(log, int64(ts)*1000)
		if !ok {
			continue
		}
		byHeight[log.BlockNumber] = append(byHeight[log.BlockNumber], ev)
	}

	heights := make([]uint64, 0, len(byHeight))
	for height := range byHeight {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	blocks := make([]model.Block, 0, len(heights))
	for _, height := range heights {
		events := byHeight[height]
		sort.Slice(events, func(i, j int) bool { return events[i].LogIndex < events[j].LogIndex })
		blocks = append(blocks, model.Block{
			Height:      height,
			TimestampMs: events[0].Timestamp,
			Events:      events,
		})
	}
	return blocks, nil
}

func (s *Source) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, s.cfg.Addresses, []common.Hash{TransferTopic})
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (s *Source) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = s.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			s.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
