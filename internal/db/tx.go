package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so helpers can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx starts a transaction, runs fn, and commits if fn returns nil.
// If fn returns an error (or panics) the transaction is rolled back and the
// error is returned unchanged, so callers can still match it with errors.Is.
//
//	err := db.WithTx(ctx, h, nil, func(tx *sql.Tx) error {
//	    _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE id=$1`, id)
//	    return err
//	})
func WithTx(ctx context.Context, h *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	if h == nil {
		return errors.New("db: handle is nil")
	}
	tx, err := h.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("db: commit: %w", e)
		}
	}()
	err = fn(tx)
	return
}

// ForUpdate returns the row-locking suffix for a SELECT inside a transaction.
// sqlite has no row locks; its single pooled connection already serializes writers.
func ForUpdate(driver Driver) string {
	if driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}
