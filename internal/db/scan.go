package db

import (
	"database/sql"
	"time"
)

// Millis converts a unix-millisecond column to time.Time (UTC).
func Millis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// NullMillis converts a nullable unix-millisecond column.
func NullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := Millis(v.Int64)
	return &t
}

// NullString returns nil for a NULL column.
func NullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// NullInt returns nil for a NULL column.
func NullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// NullBool returns nil for a NULL column.
func NullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

// MillisArg turns an optional timestamp into a query argument.
func MillisArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
