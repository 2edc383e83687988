package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"balanceScope/internal/ledger"
	"balanceScope/internal/model"
)

const hourMs = int64(3_600_000)

func TestFirstRunAnchorsCursorWithoutCatchup(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), 0, 1)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)

	windows := flusher.Flush(context.Background(), 10*hourMs, 5)
	if len(windows) != 0 {
		t.Fatalf("first run must not catch up into the past, got %d windows", len(windows))
	}
	cursor, set := flusher.Cursor()
	if !set || cursor != 10*hourMs {
		t.Fatalf("cursor not anchored: %d set=%v", cursor, set)
	}
}

func TestExhaustedCatchupEmitsEveryBoundary(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), 0, 1)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)
	flusher.SetCursor(0)

	windows := flusher.Flush(context.Background(), 3*hourMs, 10)
	if len(windows) != 3 {
		t.Fatalf("expected 3 exhausted windows, got %d", len(windows))
	}

	bounds := [][2]int64{{0, hourMs}, {hourMs, 2 * hourMs}, {2 * hourMs, 3 * hourMs}}
	for i, w := range windows {
		if w.Trigger != model.TriggerExhausted {
			t.Fatalf("window %d trigger mismatch: %s", i, w.Trigger)
		}
		if w.StartTs != bounds[i][0] || w.EndTs != bounds[i][1] {
			t.Fatalf("window %d bounds mismatch: [%d, %d)", i, w.StartTs, w.EndTs)
		}
		if w.BalanceBefore != "100" || w.BalanceAfter != "100" {
			t.Fatalf("window %d balances mismatch: %s -> %s", i, w.BalanceBefore, w.BalanceAfter)
		}
		if w.TxHash != "" || w.EndHeight != 0 {
			t.Fatalf("exhausted window must not carry a transaction anchor")
		}
	}

	balance, _ := book.Get("asset-x", "alice")
	if balance.UpdatedAtTs != 3*hourMs {
		t.Fatalf("ledger not advanced to last boundary: %d", balance.UpdatedAtTs)
	}
}

func TestFlushIsIdempotentAtSameTimestamp(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), 0, 1)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)
	flusher.SetCursor(0)

	first := flusher.Flush(context.Background(), 3*hourMs, 10)
	if len(first) == 0 {
		t.Fatalf("expected windows on first flush")
	}
	second := flusher.Flush(context.Background(), 3*hourMs, 10)
	if len(second) != 0 {
		t.Fatalf("re-running flush at same timestamp emitted %d windows", len(second))
	}
}

func TestBoundariesAreEpochAligned(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), hourMs+500_000, 1)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)
	// Cursor anchored off-boundary mid-window.
	flusher.SetCursor(hourMs + 500_000)

	windows := flusher.Flush(context.Background(), 3*hourMs, 10)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	// The boundary snaps to the next multiple of the window duration,
	// independent of where the cursor sat.
	if windows[0].StartTs != hourMs+500_000 || windows[0].EndTs != 2*hourMs {
		t.Fatalf("bounds mismatch: [%d, %d)", windows[0].StartTs, windows[0].EndTs)
	}
	cursor, _ := flusher.Cursor()
	if cursor != 2*hourMs {
		t.Fatalf("cursor not on boundary: %d", cursor)
	}
}

func TestZeroBalancesAndFreshPairsAreSkipped(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "drained", big.NewInt(0), 0, 1)
	book.Set("asset-x", "fresh", big.NewInt(50), 2*hourMs+1, 2)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)
	flusher.SetCursor(2 * hourMs)

	windows := flusher.Flush(context.Background(), 3*hourMs, 10)
	if len(windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(windows))
	}
}

func TestCatchupCapDefersBoundaries(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), 0, 1)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 2, nil)
	flusher.SetCursor(0)

	windows := flusher.Flush(context.Background(), 5*hourMs, 10)
	if len(windows) != 2 {
		t.Fatalf("expected cap of 2 windows, got %d", len(windows))
	}
	cursor, _ := flusher.Cursor()
	if cursor != 2*hourMs {
		t.Fatalf("cursor mismatch after cap: %d", cursor)
	}

	// The next block resumes where the cap stopped; nothing is skipped.
	windows = flusher.Flush(context.Background(), 5*hourMs, 11)
	if len(windows) != 2 {
		t.Fatalf("expected 2 more windows, got %d", len(windows))
	}
	windows = flusher.Flush(context.Background(), 5*hourMs, 12)
	if len(windows) != 1 {
		t.Fatalf("expected final window, got %d", len(windows))
	}
	cursor, _ = flusher.Cursor()
	if cursor != 5*hourMs {
		t.Fatalf("cursor mismatch after catch-up: %d", cursor)
	}
}

func TestPriceFailureDoesNotAbortOtherPairs(t *testing.T) {
	book := ledger.New()
	book.Set("asset-x", "alice", big.NewInt(100), 0, 1)
	book.Set("asset-y", "bob", big.NewInt(10), 0, 1)

	oracle := testOracle(stubPriceSource{
		prices:  map[string]decimal.Decimal{"feed-y": decimal.NewFromInt(5)},
		failing: map[string]bool{"feed-x": true},
	})
	flusher := NewFlusher(book, oracle, testAssets(), hourMs, 0, nil)
	flusher.SetCursor(0)

	windows := flusher.Flush(context.Background(), hourMs, 10)
	if len(windows) != 2 {
		t.Fatalf("expected both pairs to emit, got %d", len(windows))
	}

	byAsset := map[string]model.HistoryWindow{}
	for _, w := range windows {
		byAsset[w.AssetID] = w
	}
	if byAsset["asset-x"].ValueUSD != "0" {
		t.Fatalf("failed feed should value at zero, got %s", byAsset["asset-x"].ValueUSD)
	}
	if byAsset["asset-y"].ValueUSD != "50" {
		t.Fatalf("healthy feed mispriced: %s", byAsset["asset-y"].ValueUSD)
	}
}

func TestWindowsAreContiguousAcrossTriggers(t *testing.T) {
	book := ledger.New()
	emitter := NewEmitter(book, defaultOracle(), testAssets(), nil)
	flusher := NewFlusher(book, defaultOracle(), testAssets(), hourMs, 0, nil)
	ctx := context.Background()

	var all []model.HistoryWindow
	emitter.Apply(ctx, deposit("asset-x", "alice", 100, 0, 1))
	flusher.SetCursor(0)

	// Idle for two hours, then a withdrawal mid-window, then more idle time.
	all = append(all, flusher.Flush(ctx, 2*hourMs, 5)...)
	w, _ := emitter.Apply(ctx, withdraw("asset-x", "alice", 30, 2*hourMs+600_000, 6))
	all = append(all, w...)
	all = append(all, flusher.Flush(ctx, 4*hourMs, 8)...)

	if len(all) < 4 {
		t.Fatalf("expected at least 4 windows, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartTs != all[i-1].EndTs {
			t.Fatalf("gap between window %d and %d: %d != %d", i-1, i, all[i-1].EndTs, all[i].StartTs)
		}
	}
	for i, w := range all {
		if w.StartTs >= w.EndTs {
			t.Fatalf("window %d is empty or inverted: [%d, %d)", i, w.StartTs, w.EndTs)
		}
	}
}
