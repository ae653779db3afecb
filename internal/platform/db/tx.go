package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNoConnection = errors.New("no database connection in context")

// WithTx begins a transaction on the tenant connection and returns a context
// carrying it. Callers commit or roll back the returned tx.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, ErrNoConnection
	}
	if mu := ConnLock(ctx); mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxFromContext returns the transaction started by WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
