package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertAppointment = `-- name: InsertAppointment :exec
INSERT INTO appointments (
    id, salon_id, client_id, staff_id, service_id,
    starts_at, ends_at, status, notes, source_batch_id, source_row
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
`

type InsertAppointmentParams struct {
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
}

func (q *Queries) InsertAppointment(ctx context.Context, arg InsertAppointmentParams) error {
	_, err := q.db.Exec(ctx, insertAppointment,
		arg.ID,
		arg.SalonID,
		arg.ClientID,
		arg.StaffID,
		arg.ServiceID,
		arg.StartsAt,
		arg.EndsAt,
		arg.Status,
		arg.Notes,
		arg.SourceBatchID,
		arg.SourceRow,
	)
	return err
}

const insertAppointmentService = `-- name: InsertAppointmentService :exec
INSERT INTO appointment_services (appointment_id, service_id, position)
VALUES ($1, $2, $3)
`

type InsertAppointmentServiceParams struct {
	AppointmentID pgtype.UUID
	ServiceID     pgtype.UUID
	Position      int32
}

func (q *Queries) InsertAppointmentService(ctx context.Context, arg InsertAppointmentServiceParams) error {
	_, err := q.db.Exec(ctx, insertAppointmentService, arg.AppointmentID, arg.ServiceID, arg.Position)
	return err
}
