// Package tx carries a SQL transaction through context so the SQL-backed
// stores can join an enclosing transaction without changing their
// signatures. Stores fall back to their own *sql.DB when no transaction is
// present.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores a transaction in the context.
func WithTx(ctx context.Context, txn *sql.Tx) context.Context {
	if txn == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, txn)
}

// From extracts the transaction, if one is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	txn, ok := ctx.Value(txKey).(*sql.Tx)
	return txn, ok
}

// ExecutorFor returns the context transaction when present, otherwise the
// given database handle.
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if txn, ok := From(ctx); ok {
		return txn
	}
	return db
}
