package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"balanceScope/internal/ledger"
	"balanceScope/internal/model"
	"balanceScope/internal/pricing"
	"balanceScope/internal/sink"
	"balanceScope/internal/snapshot"
)

// Config holds per-protocol processor settings.
type Config struct {
	Protocol          string
	ChainID           uint64
	WindowDurationMs  int64
	MaxCatchupWindows int
}

// Engine is the single-writer processor for one protocol instance: events
// through the emitter, idle pairs through the flusher, records into the sink,
// state into the snapshot store. Blocks must arrive in strictly ascending
// height order.
type Engine struct {
	cfg       Config
	ledger    *ledger.Ledger
	emitter   *Emitter
	flusher   *Flusher
	sink      *sink.Sink
	snapshots snapshot.Store
	oracle    *pricing.Oracle
	assets    map[string]model.AssetMeta
	logger    *zap.Logger

	lastHeight uint64
	restored   bool
}

func New(cfg Config, oracle *pricing.Oracle, out *sink.Sink, snapshots snapshot.Store, assets map[string]model.AssetMeta, logger *zap.Logger) (*Engine, error) {
	if cfg.Protocol == "" {
		return nil, fmt.Errorf("protocol name is required")
	}
	if cfg.WindowDurationMs <= 0 {
		return nil, fmt.Errorf("window duration must be positive")
	}
	if out == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	book := ledger.New()
	return &Engine{
		cfg:       cfg,
		ledger:    book,
		emitter:   NewEmitter(book, oracle, assets, logger),
		flusher:   NewFlusher(book, oracle, assets, cfg.WindowDurationMs, cfg.MaxCatchupWindows, logger),
		sink:      out,
		snapshots: snapshots,
		oracle:    oracle,
		assets:    assets,
		logger:    logger,
	}, nil
}

// Restore loads the last snapshot for this protocol, if any. Must run before
// the first block; starting without a snapshot is surfaced as a warning since
// a lost snapshot means replayed or missing windows.
func (e *Engine) Restore(ctx context.Context) error {
	if e.restored {
		return fmt.Errorf("already restored")
	}
	e.restored = true

	if e.snapshots == nil {
		e.logger.Warn("no snapshot store configured, starting from empty state")
		return nil
	}

	snap, ok, err := e.snapshots.Load(ctx, e.cfg.Protocol)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		e.logger.Warn("no snapshot found, starting from empty state", zap.String("protocol", e.cfg.Protocol))
		return nil
	}

	book, cursor, err := snap.Restore()
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	e.ledger = book
	e.emitter = NewEmitter(book, e.oracle, e.assets, e.logger)
	e.flusher = NewFlusher(book, e.oracle, e.assets, e.cfg.WindowDurationMs, e.cfg.MaxCatchupWindows, e.logger)
	e.flusher.SetCursor(cursor)

	e.logger.Info("snapshot restored",
		zap.String("protocol", e.cfg.Protocol),
		zap.Int("pairs", book.Len()),
		zap.Int64("cursor", cursor),
	)
	return nil
}

// ProcessBlock applies one finalized block: transfer windows first, then
// boundary catch-up for idle pairs, then sink buffering and a state snapshot.
func (e *Engine) ProcessBlock(ctx context.Context, block model.Block) error {
	if !e.restored {
		return fmt.Errorf("engine not restored")
	}
	if e.lastHeight != 0 && block.Height <= e.lastHeight {
		return fmt.Errorf("block %d out of order, last processed %d", block.Height, e.lastHeight)
	}

	records := make([]model.OutputRecord, 0, len(block.Events)*2)
	for _, ev := range block.Events {
		windows, actions := e.emitter.Apply(ctx, ev)
		for _, w := range windows {
			records = append(records, model.WindowRecord(e.cfg.Protocol, e.cfg.ChainID, w))
		}
		for _, a := range actions {
			records = append(records, model.ActionOutputRecord(e.cfg.Protocol, e.cfg.ChainID, a))
		}
	}

	for _, w := range e.flusher.Flush(ctx, block.TimestampMs, block.Height) {
		records = append(records, model.WindowRecord(e.cfg.Protocol, e.cfg.ChainID, w))
	}

	e.sink.Add(records...)
	e.sink.MaybeFlush(ctx)
	e.lastHeight = block.Height

	e.saveSnapshot(ctx)
	return nil
}

// Close forces a final sink flush and snapshot so a restart resumes exactly
// where processing stopped.
func (e *Engine) Close(ctx context.Context) error {
	e.saveSnapshot(ctx)
	if err := e.sink.Flush(ctx); err != nil {
		return fmt.Errorf("final sink flush: %w", err)
	}
	return nil
}

// saveSnapshot persists ledger and cursor. A write failure is logged, not
// fatal: the in-memory state stays authoritative for this process lifetime.
func (e *Engine) saveSnapshot(ctx context.Context) {
	if e.snapshots == nil {
		return
	}
	cursor, set := e.flusher.Cursor()
	if !set && e.ledger.Len() == 0 {
		return
	}
	snap := snapshot.Capture(e.cfg.Protocol, e.ledger, cursor)
	if err := e.snapshots.Save(ctx, snap); err != nil {
		e.logger.Error("snapshot save failed, in-memory state remains authoritative",
			zap.String("protocol", e.cfg.Protocol),
			zap.Error(err),
		)
	}
}
