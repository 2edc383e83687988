package sink

import (
	"context"

	"balanceScope/internal/model"
	"balanceScope/internal/storage/postgres"
)

// PostgresDelivery archives record batches in the output_records table.
type PostgresDelivery struct {
	Store *postgres.Store
}

func (d *PostgresDelivery) Send(ctx context.Context, records []model.OutputRecord) error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.InsertOutputRecords(ctx, records)
}
