package store

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// classify decides whether a write error is confined to one row or means the
// database cannot be used any more. Server-side constraint and data errors
// are row-level; connection, resource and shutdown classes are not, and
// neither is anything that never reached the server.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch sqlStateClass(pgErr.Code) {
		case "08", "53", "57", "58":
			return fmt.Errorf("%w: %s (SQLSTATE %s)", core.ErrStorageUnavailable, pgErr.Message, pgErr.Code)
		}
		return rowError(pgErr)
	}
	return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

// rowError renders a constraint violation as the message shown in the
// error report.
func rowError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("duplicate key value violates unique constraint %q", pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("insert violates foreign key constraint %q", pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("value violates check constraint %q", pgErr.ConstraintName)
	}
	return fmt.Errorf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt4(i int) pgtype.Int4 {
	if i == 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func toPgTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return toPgTime(*t)
}

func toAddr(ip string) *netip.Addr {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil
	}
	return &addr
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
