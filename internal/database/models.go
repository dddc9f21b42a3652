package database

import (
	"net/netip"

	"github.com/jackc/pgx/v5/pgtype"
)

type Service struct {
	ID              pgtype.UUID
	SalonID         pgtype.UUID
	Name            string
	DurationMinutes int32
	IsActive        bool
}

type Client struct {
	ID        pgtype.UUID
	SalonID   pgtype.UUID
	Name      string
	Email     pgtype.Text
	Phone     pgtype.Text
	IsGuest   bool
	CreatedAt pgtype.Timestamptz
}

type Appointment struct {
	ID            pgtype.UUID
	SalonID       pgtype.UUID
	ClientID      pgtype.UUID
	StaffID       pgtype.UUID
	ServiceID     pgtype.UUID
	StartsAt      pgtype.Timestamptz
	EndsAt        pgtype.Timestamptz
	Status        string
	Notes         pgtype.Text
	SourceBatchID pgtype.UUID
	SourceRow     pgtype.Int4
	CreatedAt     pgtype.Timestamptz
}

type ImportBatch struct {
	ID             pgtype.UUID
	JobID          pgtype.UUID
	SalonID        pgtype.UUID
	Status         string
	TotalRows      int32
	SuccessfulRows int32
	FailedRows     int32
	Error          pgtype.Text
	RequestedIp    *netip.Addr
	UserAgent      pgtype.Text
	CreatedAt      pgtype.Timestamptz
	StartedAt      pgtype.Timestamptz
	FinishedAt     pgtype.Timestamptz
}

type ImportFailedRow struct {
	BatchID   pgtype.UUID
	RowNumber int32
	Data      []byte
	Errors    []string
	CreatedAt pgtype.Timestamptz
}
