package snapshot

import (
	"context"
	"strings"
	"time"

	"balanceScope/internal/storage/postgres"
)

// DBStore persists snapshots in the active_balances and engine_state tables.
type DBStore struct {
	Store *postgres.Store
}

func (s *DBStore) Load(ctx context.Context, protocol string) (Snapshot, bool, error) {
	if s == nil || s.Store == nil {
		return Snapshot{}, false, nil
	}

	cursor, ok, err := s.Store.LoadCursor(ctx, protocol)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !ok {
		return Snapshot{}, false, nil
	}

	rows, err := s.Store.LoadBalances(ctx, protocol)
	if err != nil {
		return Snapshot{}, false, err
	}

	balances := make(map[string]Record, len(rows))
	for _, row := range rows {
		balances[Key(row.AssetID, row.UserID)] = Record{
			Balance:         strings.TrimSpace(row.Balance),
			UpdatedAtTs:     row.UpdatedAtTs,
			UpdatedAtHeight: row.UpdatedAtHeight,
		}
	}

	return Snapshot{
		Protocol:           protocol,
		Balances:           balances,
		LastInterpolatedTs: cursor,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}, true, nil
}

func (s *DBStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}

	rows := make([]postgres.BalanceRow, 0, len(snap.Balances))
	for key, record := range snap.Balances {
		assetID, userID, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		rows = append(rows, postgres.BalanceRow{
			AssetID:         assetID,
			UserID:          userID,
			Balance:         record.Balance,
			UpdatedAtTs:     record.UpdatedAtTs,
			UpdatedAtHeight: record.UpdatedAtHeight,
		})
	}

	if err := s.Store.UpsertBalances(ctx, snap.Protocol, rows); err != nil {
		return err
	}
	return s.Store.SaveCursor(ctx, snap.Protocol, snap.LastInterpolatedTs)
}
