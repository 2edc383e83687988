package model

// AssetMeta describes a tracked asset: where its events come from and how to
// value them.
type AssetMeta struct {
	AssetID     string `json:"asset_id"`
	Symbol      string `json:"symbol"`
	PriceFeedID string `json:"price_feed_id"`
	Decimals    uint8  `json:"decimals"`
}
