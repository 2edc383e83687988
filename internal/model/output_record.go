package model

// Output event types.
const (
	EventTypeTWB    = "time_weighted_balance"
	EventTypeAction = "action"
)

// OutputRecord is the flattened record handed to the delivery sink.
type OutputRecord struct {
	EventType            string `json:"event_type"`
	Protocol             string `json:"protocol"`
	ChainID              uint64 `json:"chain_id"`
	AssetID              string `json:"asset_id"`
	UserID               string `json:"user_id"`
	Trigger              string `json:"trigger,omitempty"`
	Action               string `json:"action,omitempty"`
	StartUnixTimestampMs int64  `json:"start_unix_timestamp_ms"`
	EndUnixTimestampMs   int64  `json:"end_unix_timestamp_ms"`
	StartHeight          uint64 `json:"start_height,omitempty"`
	EndHeight            uint64 `json:"end_height,omitempty"`
	TxHash               string `json:"tx_hash,omitempty"`
	BalanceBefore        string `json:"balance_before,omitempty"`
	BalanceAfter         string `json:"balance_after,omitempty"`
	Amount               string `json:"amount,omitempty"`
	TokenPrice           string `json:"token_price"`
	ValueUSD             string `json:"value_usd"`
}

// WindowRecord flattens a HistoryWindow into an OutputRecord.
func WindowRecord(protocol string, chainID uint64, w HistoryWindow) OutputRecord {
	return OutputRecord{
		EventType:            EventTypeTWB,
		Protocol:             protocol,
		ChainID:              chainID,
		AssetID:              w.AssetID,
		UserID:               w.UserID,
		Trigger:              w.Trigger,
		StartUnixTimestampMs: w.StartTs,
		EndUnixTimestampMs:   w.EndTs,
		StartHeight:          w.StartHeight,
		EndHeight:            w.EndHeight,
		TxHash:               w.TxHash,
		BalanceBefore:        w.BalanceBefore,
		BalanceAfter:         w.BalanceAfter,
		TokenPrice:           w.TokenPrice,
		ValueUSD:             w.ValueUSD,
	}
}

// ActionOutputRecord flattens an ActionRecord into an OutputRecord.
func ActionOutputRecord(protocol string, chainID uint64, a ActionRecord) OutputRecord {
	return OutputRecord{
		EventType:            EventTypeAction,
		Protocol:             protocol,
		ChainID:              chainID,
		AssetID:              a.AssetID,
		UserID:               a.UserID,
		Action:               a.Kind,
		StartUnixTimestampMs: a.Timestamp,
		EndUnixTimestampMs:   a.Timestamp,
		StartHeight:          a.Height,
		EndHeight:            a.Height,
		TxHash:               a.TxHash,
		Amount:               a.Amount,
		TokenPrice:           a.TokenPrice,
		ValueUSD:             a.ValueUSD,
	}
}
