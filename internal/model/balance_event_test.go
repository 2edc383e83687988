package model

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestBalanceEventRecordAmountIsString(t *testing.T) {
	record := NewBalanceEventRecord(BalanceEvent{
		AssetID:   "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		From:      "0x1111111111111111111111111111111111111111",
		To:        "0x2222222222222222222222222222222222222222",
		Amount:    new(big.Int).SetUint64(12345678901234567890),
		Timestamp: 1700000000000,
		Height:    100,
		TxHash:    "0xabc",
	})

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["amount"].(string); !ok {
		t.Fatalf("amount should be string")
	}
}

func TestBalanceEventRecordToEvent(t *testing.T) {
	record := BalanceEventRecord{
		AssetID:     "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		To:          "0x2222222222222222222222222222222222222222",
		Amount:      "1000",
		TimestampMs: 1000,
		Height:      7,
	}

	ev, err := record.ToEvent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("amount mismatch: %s", ev.Amount)
	}
	if ev.From != "" {
		t.Fatalf("from should be empty for mint")
	}
}

func TestBalanceEventRecordRejectsBadAmount(t *testing.T) {
	if _, err := (BalanceEventRecord{Amount: "not-a-number"}).ToEvent(); err == nil {
		t.Fatalf("expected error for invalid amount")
	}
	if _, err := (BalanceEventRecord{Amount: "-5"}).ToEvent(); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}
