package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const findClientByEmail = `-- name: FindClientByEmail :one
SELECT id
FROM clients
WHERE salon_id = $1 AND lower(email) = lower($2)
ORDER BY is_guest, created_at
LIMIT 1
`

type FindClientByEmailParams struct {
	SalonID pgtype.UUID
	Email   string
}

func (q *Queries) FindClientByEmail(ctx context.Context, arg FindClientByEmailParams) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, findClientByEmail, arg.SalonID, arg.Email)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}

const findClientByPhone = `-- name: FindClientByPhone :one
SELECT id
FROM clients
WHERE salon_id = $1 AND phone = $2
ORDER BY is_guest, created_at
LIMIT 1
`

type FindClientByPhoneParams struct {
	SalonID pgtype.UUID
	Phone   string
}

func (q *Queries) FindClientByPhone(ctx context.Context, arg FindClientByPhoneParams) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, findClientByPhone, arg.SalonID, arg.Phone)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}

const insertGuestClient = `-- name: InsertGuestClient :exec
INSERT INTO clients (id, salon_id, name, email, phone, is_guest)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (id) DO NOTHING
`

type InsertGuestClientParams struct {
	ID      pgtype.UUID
	SalonID pgtype.UUID
	Name    string
	Email   pgtype.Text
	Phone   pgtype.Text
}

func (q *Queries) InsertGuestClient(ctx context.Context, arg InsertGuestClientParams) error {
	_, err := q.db.Exec(ctx, insertGuestClient,
		arg.ID,
		arg.SalonID,
		arg.Name,
		arg.Email,
		arg.Phone,
	)
	return err
}
