package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// batcher is satisfied by both *pgxpool.Pool and pgx.Tx.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// flushBatch sends a batch and surfaces the first failed statement.
func flushBatch(ctx context.Context, db batcher, batch *pgx.Batch) error {
	results := db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}
