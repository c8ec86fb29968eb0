package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Date converts the calendar fields of t into a DATE parameter. The time of
// day and the location offset are ignored.
func Date(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	y, m, d := t.Date()
	return pgtype.Date{
		Time:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}
