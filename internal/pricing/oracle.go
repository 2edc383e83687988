package pricing

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Oracle resolves (feed, timestamp) to a USD price. Lookups are bucketed to
// calendar days and cached; missing market data resolves to zero so a stuck
// price never blocks indexing progress.
type Oracle struct {
	source  Source
	cache   *Cache
	backoff Backoff
	logger  *zap.Logger
}

func NewOracle(source Source, cache *Cache, backoff Backoff, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Oracle{
		source:  source,
		cache:   cache,
		backoff: backoff,
		logger:  logger,
	}
}

// USDPrice returns the cached day price for the feed, fetching through the
// source on a miss. Missing market data is cached as zero and returns nil;
// a transport failure after retries is returned to the caller, who is
// expected to degrade to zero and keep going.
func (o *Oracle) USDPrice(ctx context.Context, feedID string, ts int64) (decimal.Decimal, error) {
	bucket := DayBucket(ts)
	if price, ok := o.cache.Get(feedID, bucket); ok {
		return price, nil
	}

	var price decimal.Decimal
	var found bool
	err := o.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		price, found, err = o.source.HistoricalPrice(ctx, feedID, bucket)
		if err != nil {
			o.logger.Warn("price lookup failed",
				zap.String("feed", feedID),
				zap.Int64("bucket", bucket),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	if !found {
		o.logger.Warn("no market data for day, valuing at zero",
			zap.String("feed", feedID),
			zap.Int64("bucket", bucket),
		)
		price = decimal.Zero
	}

	o.cache.Set(feedID, bucket, price)
	return price, nil
}

// ValueUSD converts a raw integer balance into USD using decimal-scaled
// arithmetic: balance / 10^decimals * price. Never goes through float64.
func ValueUSD(balance *big.Int, decimals uint8, price decimal.Decimal) decimal.Decimal {
	if balance == nil || balance.Sign() == 0 || price.IsZero() {
		return decimal.Zero
	}
	scaled := decimal.NewFromBigInt(balance, -int32(decimals))
	return scaled.Mul(price)
}
