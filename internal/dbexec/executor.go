// Package dbexec provides the read-only query abstraction used by the SQL store.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows so tests and wrappers can substitute their own.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// QueryExecutor runs read queries.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// SQLQueryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type SQLQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db SQLQueryer
}

// NewStandardExecutor creates an executor over db.
func NewStandardExecutor(db SQLQueryer) *StandardExecutor {
	return &StandardExecutor{db: db}
}

// QueryContext runs query with args bound as placeholders.
func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e == nil || e.db == nil {
		return nil, sql.ErrConnDone
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
