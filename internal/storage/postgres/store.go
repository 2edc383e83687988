package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"balanceScope/internal/model"
)

// Store provides Postgres persistence for engine state and emitted records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// BalanceRow is the flattened active balance representation for storage.
type BalanceRow struct {
	AssetID         string
	UserID          string
	Balance         string
	UpdatedAtTs     int64
	UpdatedAtHeight uint64
}

// UpsertBalances writes the flattened ledger for a protocol. Pairs are never
// deleted, so upserts are sufficient.
func (s *Store) UpsertBalances(ctx context.Context, protocol string, rows []BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO active_balances (
				protocol, asset_id, user_id, balance, updated_at_ts, updated_at_height, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (protocol, asset_id, user_id)
			DO UPDATE SET
				balance = EXCLUDED.balance,
				updated_at_ts = EXCLUDED.updated_at_ts,
				updated_at_height = EXCLUDED.updated_at_height,
				updated_at = now()
		`,
			protocol,
			row.AssetID,
			row.UserID,
			row.Balance,
			row.UpdatedAtTs,
			int64(row.UpdatedAtHeight),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadBalances returns every flattened balance row for a protocol.
func (s *Store) LoadBalances(ctx context.Context, protocol string) ([]BalanceRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset_id, user_id, balance, updated_at_ts, updated_at_height
		FROM active_balances
		WHERE protocol = $1
	`, protocol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceRow
	for rows.Next() {
		var row BalanceRow
		var height int64
		if err := rows.Scan(&row.AssetID, &row.UserID, &row.Balance, &row.UpdatedAtTs, &height); err != nil {
			return nil, err
		}
		row.UpdatedAtHeight = uint64(height)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveCursor upserts the flush cursor for a protocol.
func (s *Store) SaveCursor(ctx context.Context, protocol string, ts int64) error {
	if protocol == "" {
		return fmt.Errorf("protocol name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (protocol, last_interpolated_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (protocol) DO UPDATE
		SET last_interpolated_ts = EXCLUDED.last_interpolated_ts, updated_at = now()
	`, protocol, ts)
	return err
}

// LoadCursor returns the flush cursor for a protocol.
func (s *Store) LoadCursor(ctx context.Context, protocol string) (int64, bool, error) {
	if protocol == "" {
		return 0, false, fmt.Errorf("protocol name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_interpolated_ts FROM engine_state WHERE protocol=$1`, protocol)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// InsertOutputRecords archives flattened window and action records. The
// conflict target covers the pair and start timestamp so replays overwrite
// instead of duplicating.
func (s *Store) InsertOutputRecords(ctx context.Context, records []model.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO output_records (
				event_type, protocol, chain_id, asset_id, user_id, trigger, action,
				start_ts, end_ts, start_height, end_height, tx_hash,
				balance_before, balance_after, amount, token_price, value_usd, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())
			ON CONFLICT (event_type, protocol, asset_id, user_id, start_ts, tx_hash)
			DO UPDATE SET
				trigger = EXCLUDED.trigger,
				end_ts = EXCLUDED.end_ts,
				end_height = EXCLUDED.end_height,
				balance_before = EXCLUDED.balance_before,
				balance_after = EXCLUDED.balance_after,
				amount = EXCLUDED.amount,
				token_price = EXCLUDED.token_price,
				value_usd = EXCLUDED.value_usd
		`,
			r.EventType,
			r.Protocol,
			int64(r.ChainID),
			r.AssetID,
			r.UserID,
			r.Trigger,
			r.Action,
			r.StartUnixTimestampMs,
			r.EndUnixTimestampMs,
			int64(r.StartHeight),
			int64(r.EndHeight),
			r.TxHash,
			r.BalanceBefore,
			r.BalanceAfter,
			r.Amount,
			r.TokenPrice,
			r.ValueUSD,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
