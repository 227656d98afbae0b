package stores

import (
	"database/sql"
	"time"

	"github.com/colonyops/huddle/internal/core/payload"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// opaqueColumn stores a client payload verbatim. Null payloads become SQL NULL.
func opaqueColumn(r payload.Raw) []byte {
	if r.IsNull() {
		return nil
	}
	return r
}

func fromOpaqueColumn(data []byte) payload.Raw {
	if len(data) == 0 {
		return nil
	}
	return payload.Raw(data)
}
