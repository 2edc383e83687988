package engine

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"balanceScope/internal/model"
	"balanceScope/internal/pricing"
)

// valuer resolves a raw balance to (tokenPrice, valueUsd) strings. A failed
// or unknown price degrades to zero so one stuck feed never halts the batch.
type valuer struct {
	oracle *pricing.Oracle
	assets map[string]model.AssetMeta
	logger *zap.Logger
}

func (v *valuer) value(ctx context.Context, assetID string, balance *big.Int, ts int64) (string, string) {
	meta, ok := v.assets[assetID]
	if !ok {
		v.logger.Warn("unknown asset, valuing at zero", zap.String("asset", assetID))
		return "0", "0"
	}

	price, err := v.oracle.USDPrice(ctx, meta.PriceFeedID, ts)
	if err != nil {
		v.logger.Error("price lookup failed, valuing at zero",
			zap.String("asset", assetID),
			zap.String("feed", meta.PriceFeedID),
			zap.Int64("ts", ts),
			zap.Error(err),
		)
		return "0", "0"
	}

	return price.String(), pricing.ValueUSD(balance, meta.Decimals, price).String()
}
