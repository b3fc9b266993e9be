package postgres

import (
	"context"
	"time"

	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/Temutjin2k/ride-match/pkg/trm"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// TxorDB returns the transaction stored in ctx by trm.Manager, or the pool.
func TxorDB(ctx context.Context, db *pgxpool.Pool) Querier {
	tx, ok := ctx.Value(trm.TxKey).(pgx.Tx)
	if !ok {
		return db
	}
	return tx
}

// observe records query metrics for op. Use as: defer observe(op, time.Now(), &err)
func observe(op string, start time.Time, err *error) {
	metrics.RecordDatabaseQuery(op, *err, start)
}
