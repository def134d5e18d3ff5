// Package dbtest opens throwaway in-memory sqlite databases with the full schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

var seq atomic.Int64

// Open returns a fresh schema-initialised database private to the test.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// MustExec runs a statement or fails the test.
func MustExec(t testing.TB, h db.DBTX, q string, args ...any) {
	t.Helper()
	if _, err := h.ExecContext(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}
