package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"balanceScope/internal/model"
)

// LoadAssets reads the tracked asset list from a JSON file and returns a
// registry keyed by lowercase asset id.
func LoadAssets(path string) (map[string]model.AssetMeta, error) {
	if path == "" {
		return nil, fmt.Errorf("assets file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets: %w", err)
	}

	var assets []model.AssetMeta
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("parse assets: %w", err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("assets file is empty")
	}

	registry := make(map[string]model.AssetMeta, len(assets))
	for i, asset := range assets {
		if asset.AssetID == "" {
			return nil, fmt.Errorf("asset %d: asset_id is required", i)
		}
		if asset.PriceFeedID == "" {
			return nil, fmt.Errorf("asset %s: price_feed_id is required", asset.AssetID)
		}
		key := strings.ToLower(asset.AssetID)
		if _, dup := registry[key]; dup {
			return nil, fmt.Errorf("duplicate asset: %s", key)
		}
		asset.AssetID = key
		registry[key] = asset
	}
	return registry, nil
}
