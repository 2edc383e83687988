package engine

import (
	"context"

	"go.uber.org/zap"

	"balanceScope/internal/ledger"
	"balanceScope/internal/model"
	"balanceScope/internal/pricing"
)

// Flusher advances idle (asset, user) pairs through boundary-aligned
// EXHAUSTED windows so that no pair stays silent for more than one window
// duration. Boundaries are multiples of the window duration measured from
// epoch, independent of event timing, which keeps replays deterministic.
type Flusher struct {
	ledger         *ledger.Ledger
	valuer         valuer
	windowDuration int64
	maxCatchup     int
	logger         *zap.Logger

	cursor    int64
	cursorSet bool
}

// NewFlusher builds a flusher. windowDurationMs must be positive.
// maxCatchup bounds boundary iterations per block; 0 means unbounded.
func NewFlusher(book *ledger.Ledger, oracle *pricing.Oracle, assets map[string]model.AssetMeta, windowDurationMs int64, maxCatchup int, logger *zap.Logger) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{
		ledger:         book,
		valuer:         valuer{oracle: oracle, assets: assets, logger: logger},
		windowDuration: windowDurationMs,
		maxCatchup:     maxCatchup,
		logger:         logger,
	}
}

// Cursor returns the boundary up to which EXHAUSTED windows have been fully
// emitted, and whether the cursor has been initialized.
func (f *Flusher) Cursor() (int64, bool) {
	return f.cursor, f.cursorSet
}

// SetCursor restores the cursor from a snapshot.
func (f *Flusher) SetCursor(ts int64) {
	f.cursor = ts
	f.cursorSet = true
}

// Flush emits EXHAUSTED windows for every boundary that has fully elapsed
// before currentTs. Each iteration is an independently valid window; no
// boundary is ever skipped. When the catch-up cap is hit the remaining
// boundaries are deferred to the next block, not dropped.
func (f *Flusher) Flush(ctx context.Context, currentTs int64, currentHeight uint64) []model.HistoryWindow {
	if f.windowDuration <= 0 {
		return nil
	}
	if !f.cursorSet {
		// First ever run: anchor the cursor, no catch-up into the past.
		f.cursor = currentTs
		f.cursorSet = true
		return nil
	}

	var out []model.HistoryWindow
	iterations := 0
	for f.cursor+f.windowDuration <= currentTs {
		if f.maxCatchup > 0 && iterations >= f.maxCatchup {
			f.logger.Warn("catch-up cap reached, deferring remaining boundaries",
				zap.Int64("cursor", f.cursor),
				zap.Int64("current_ts", currentTs),
				zap.Int("cap", f.maxCatchup),
			)
			break
		}

		nextBoundary := (f.cursor/f.windowDuration + 1) * f.windowDuration
		f.ledger.ForEach(func(assetID, userID string, balance model.ActiveBalance) {
			if balance.Balance.Sign() <= 0 {
				return
			}
			if balance.UpdatedAtTs >= nextBoundary {
				return
			}

			price, value := f.valuer.value(ctx, assetID, balance.Balance, nextBoundary)
			out = append(out, model.HistoryWindow{
				AssetID:       assetID,
				UserID:        userID,
				Trigger:       model.TriggerExhausted,
				StartTs:       balance.UpdatedAtTs,
				EndTs:         nextBoundary,
				StartHeight:   balance.UpdatedAtHeight,
				BalanceBefore: balance.Balance.String(),
				BalanceAfter:  balance.Balance.String(),
				TokenPrice:    price,
				ValueUSD:      value,
			})
			f.ledger.Set(assetID, userID, balance.Balance, nextBoundary, currentHeight)
		})

		f.cursor = nextBoundary
		iterations++
	}

	return out
}
