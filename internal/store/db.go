package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database access the task stores need: statement
// execution and single-row queries. It is implemented by both *sql.DB and
// *sql.Tx, so a store can run against a connection or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
