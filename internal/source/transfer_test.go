package source

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func transferLog(from, to common.Address, amount *big.Int) types.Log {
	return types.Log{
		Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
		Index:       7,
	}
}

func TestNormalizeTransfer(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	ev, ok := NormalizeTransfer(transferLog(from, to, big.NewInt(1_500)), 9_000)
	if !ok {
		t.Fatalf("expected well-formed transfer to parse")
	}
	if ev.AssetID != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("asset mismatch: %s", ev.AssetID)
	}
	if ev.From != "0x1111111111111111111111111111111111111111" || ev.To != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("party mismatch: %s -> %s", ev.From, ev.To)
	}
	if ev.Amount.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("amount mismatch: %s", ev.Amount)
	}
	if ev.Timestamp != 9_000 || ev.Height != 42 || ev.LogIndex != 7 {
		t.Fatalf("position mismatch: %+v", ev)
	}
}

func TestNormalizeMintLeavesFromEmpty(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	ev, ok := NormalizeTransfer(transferLog(common.Address{}, to, big.NewInt(10)), 0)
	if !ok {
		t.Fatalf("expected mint to parse")
	}
	if ev.From != "" {
		t.Fatalf("mint must leave from empty, got %s", ev.From)
	}
	if ev.To == "" {
		t.Fatalf("mint must keep the receiver")
	}
}

func TestNormalizeBurnLeavesToEmpty(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")

	ev, ok := NormalizeTransfer(transferLog(from, common.Address{}, big.NewInt(10)), 0)
	if !ok {
		t.Fatalf("expected burn to parse")
	}
	if ev.To != "" {
		t.Fatalf("burn must leave to empty, got %s", ev.To)
	}
	if ev.From == "" {
		t.Fatalf("burn must keep the sender")
	}
}

func TestNormalizeRejectsMalformedLogs(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	// Zero-to-zero transfer carries no balance change.
	if _, ok := NormalizeTransfer(transferLog(common.Address{}, common.Address{}, big.NewInt(1)), 0); ok {
		t.Fatalf("expected zero-to-zero transfer to be rejected")
	}

	// Wrong topic0.
	log := transferLog(from, to, big.NewInt(1))
	log.Topics[0] = common.HexToHash("0xdeadbeef")
	if _, ok := NormalizeTransfer(log, 0); ok {
		t.Fatalf("expected wrong topic to be rejected")
	}

	// Missing indexed parties, e.g. a non-standard token.
	log = transferLog(from, to, big.NewInt(1))
	log.Topics = log.Topics[:2]
	if _, ok := NormalizeTransfer(log, 0); ok {
		t.Fatalf("expected short topic list to be rejected")
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{
		"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		"  ",
		"0x1111111111111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected blank entries skipped, got %d addresses", len(got))
	}

	if _, err := ParseAddresses([]string{"not-an-address"}); err == nil {
		t.Fatalf("expected invalid address to be rejected")
	}
}
