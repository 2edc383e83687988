package snapshot

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"balanceScope/internal/ledger"
	"balanceScope/internal/model"
)

// Record is one flattened active balance entry.
type Record struct {
	Balance         string `json:"balance"`
	UpdatedAtTs     int64  `json:"updated_at_ts"`
	UpdatedAtHeight uint64 `json:"updated_at_height"`
}

// Snapshot is the durable state of one protocol instance: the flattened
// ledger plus the flush cursor. The in-memory ledger stays nested for cheap
// per-asset iteration; flattening happens only at this boundary.
type Snapshot struct {
	Protocol           string            `json:"protocol"`
	Balances           map[string]Record `json:"balances"`
	LastInterpolatedTs int64             `json:"last_interpolated_ts"`
	UpdatedAt          string            `json:"updated_at"`
}

// Store persists snapshots keyed by protocol. Concurrent protocol instances
// must use disjoint protocol names.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, protocol string) (Snapshot, bool, error)
}

// Capture flattens the ledger and cursor into a Snapshot.
func Capture(protocol string, book *ledger.Ledger, cursorTs int64) Snapshot {
	balances := make(map[string]Record, book.Len())
	book.ForEach(func(assetID, userID string, balance model.ActiveBalance) {
		balances[Key(assetID, userID)] = Record{
			Balance:         balance.Balance.String(),
			UpdatedAtTs:     balance.UpdatedAtTs,
			UpdatedAtHeight: balance.UpdatedAtHeight,
		}
	})
	return Snapshot{
		Protocol:           protocol,
		Balances:           balances,
		LastInterpolatedTs: cursorTs,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Restore rebuilds a nested ledger and the cursor from a snapshot.
func (s Snapshot) Restore() (*ledger.Ledger, int64, error) {
	book := ledger.New()
	for key, record := range s.Balances {
		assetID, userID, ok := strings.Cut(key, ":")
		if !ok {
			return nil, 0, fmt.Errorf("malformed balance key: %s", key)
		}
		balance, ok := new(big.Int).SetString(record.Balance, 10)
		if !ok {
			return nil, 0, fmt.Errorf("malformed balance for %s: %s", key, record.Balance)
		}
		book.Set(assetID, userID, balance, record.UpdatedAtTs, record.UpdatedAtHeight)
	}
	return book, s.LastInterpolatedTs, nil
}

// Key builds the flattened composite key for a pair.
func Key(assetID, userID string) string {
	return assetID + ":" + userID
}
