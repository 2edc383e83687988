package pricing

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	calls  int
	price  decimal.Decimal
	found  bool
	err    error
	failN  int
}

func (f *fakeSource) HistoricalPrice(ctx context.Context, feedID string, ts int64) (decimal.Decimal, bool, error) {
	f.calls++
	if f.failN > 0 {
		f.failN--
		return decimal.Zero, false, fmt.Errorf("transient failure")
	}
	return f.price, f.found, f.err
}

func TestUSDPriceDayBucketCaching(t *testing.T) {
	source := &fakeSource{price: decimal.NewFromInt(42), found: true}
	oracle := NewOracle(source, NewCache(), Backoff{}, nil)

	// Two timestamps in the same UTC day hit the source once.
	first, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000+3_600_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected 1 source call, got %d", source.calls)
	}
	if !first.Equal(second) || !first.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("price mismatch: %s %s", first, second)
	}

	// A timestamp in the next day misses the cache.
	if _, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000+dayMs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected 2 source calls, got %d", source.calls)
	}
}

func TestUSDPriceMissingDataIsZeroAndCached(t *testing.T) {
	source := &fakeSource{found: false}
	oracle := NewOracle(source, NewCache(), Backoff{}, nil)

	price, err := oracle.USDPrice(context.Background(), "obscure-token", 1_700_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.IsZero() {
		t.Fatalf("expected zero price, got %s", price)
	}

	if _, err := oracle.USDPrice(context.Background(), "obscure-token", 1_700_000_000_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("missing data should be cached, got %d calls", source.calls)
	}
}

func TestUSDPriceRetriesThenSucceeds(t *testing.T) {
	source := &fakeSource{price: decimal.NewFromInt(7), found: true, failN: 2}
	oracle := NewOracle(source, NewCache(), Backoff{MaxRetries: 3, BaseDelay: 1}, nil)

	price, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("price mismatch: %s", price)
	}
	if source.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", source.calls)
	}
}

func TestUSDPriceFailureIsNotCached(t *testing.T) {
	source := &fakeSource{failN: 1}
	oracle := NewOracle(source, NewCache(), Backoff{}, nil)

	if _, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000); err == nil {
		t.Fatalf("expected error")
	}

	source.price = decimal.NewFromInt(9)
	source.found = true
	price, err := oracle.USDPrice(context.Background(), "ether", 1_700_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("price mismatch after recovery: %s", price)
	}
}

func TestDayBucket(t *testing.T) {
	if got := DayBucket(0); got != 0 {
		t.Fatalf("bucket of 0: %d", got)
	}
	if got := DayBucket(dayMs - 1); got != 0 {
		t.Fatalf("bucket just before midnight: %d", got)
	}
	if got := DayBucket(dayMs); got != dayMs {
		t.Fatalf("bucket at midnight: %d", got)
	}
	if got := DayBucket(3*dayMs + 12345); got != 3*dayMs {
		t.Fatalf("bucket mid-day: %d", got)
	}
}

func TestValueUSD(t *testing.T) {
	// 1.5 tokens of an 18-decimal asset at $2000.
	balance, _ := new(big.Int).SetString("1500000000000000000", 10)
	value := ValueUSD(balance, 18, decimal.NewFromInt(2000))
	if !value.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("value mismatch: %s", value)
	}
}

func TestValueUSDLargeSupplyPrecision(t *testing.T) {
	// 10^27 raw units with 18 decimals at $0.000001 must not lose precision.
	balance := new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	value := ValueUSD(balance, 18, decimal.RequireFromString("0.000001"))
	if !value.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("value mismatch: %s", value)
	}
}

func TestValueUSDZeroInputs(t *testing.T) {
	if !ValueUSD(nil, 18, decimal.NewFromInt(10)).IsZero() {
		t.Fatalf("nil balance should value to zero")
	}
	if !ValueUSD(big.NewInt(100), 2, decimal.Zero).IsZero() {
		t.Fatalf("zero price should value to zero")
	}
}
