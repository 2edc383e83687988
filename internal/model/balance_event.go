package model

import (
	"fmt"
	"math/big"
)

// BalanceEvent is the normalized balance-changing event consumed by the engine.
// From is empty for mints, To is empty for burns. Amount is non-negative raw
// token units.
type BalanceEvent struct {
	AssetID   string
	From      string
	To        string
	Amount    *big.Int
	Timestamp int64
	Height    uint64
	TxHash    string
	LogIndex  uint64
}

// Block groups the balance events of one finalized block.
type Block struct {
	Height      uint64
	TimestampMs int64
	Events      []BalanceEvent
}

// BalanceEventRecord is the JSON representation of a BalanceEvent, with the
// amount as a decimal string.
type BalanceEventRecord struct {
	AssetID     string `json:"asset_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Amount      string `json:"amount"`
	TimestampMs int64  `json:"timestamp_ms"`
	Height      uint64 `json:"height"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint64 `json:"log_index"`
}

// ToEvent converts the wire record into a BalanceEvent.
func (r BalanceEventRecord) ToEvent() (BalanceEvent, error) {
	amount := big.NewInt(0)
	if r.Amount != "" {
		parsed, ok := new(big.Int).SetString(r.Amount, 10)
		if !ok {
			return BalanceEvent{}, fmt.Errorf("invalid amount: %s", r.Amount)
		}
		amount = parsed
	}
	if amount.Sign() < 0 {
		return BalanceEvent{}, fmt.Errorf("negative amount: %s", r.Amount)
	}
	return BalanceEvent{
		AssetID:   r.AssetID,
		From:      r.From,
		To:        r.To,
		Amount:    amount,
		Timestamp: r.TimestampMs,
		Height:    r.Height,
		TxHash:    r.TxHash,
		LogIndex:  r.LogIndex,
	}, nil
}

// NewBalanceEventRecord converts a BalanceEvent into its wire representation.
func NewBalanceEventRecord(ev BalanceEvent) BalanceEventRecord {
	amount := "0"
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	return BalanceEventRecord{
		AssetID:     ev.AssetID,
		From:        ev.From,
		To:          ev.To,
		Amount:      amount,
		TimestampMs: ev.Timestamp,
		Height:      ev.Height,
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
	}
}
