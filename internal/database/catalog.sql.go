package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listActiveServices = `-- name: ListActiveServices :many
SELECT id, name, duration_minutes
FROM services
WHERE salon_id = $1 AND is_active
ORDER BY name, id
`

type ListActiveServicesRow struct {
	ID              pgtype.UUID
	Name            string
	DurationMinutes int32
}

func (q *Queries) ListActiveServices(ctx context.Context, salonID pgtype.UUID) ([]ListActiveServicesRow, error) {
	rows, err := q.db.Query(ctx, listActiveServices, salonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListActiveServicesRow
	for rows.Next() {
		var i ListActiveServicesRow
		if err := rows.Scan(&i.ID, &i.Name, &i.DurationMinutes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const staffBelongsToSalon = `-- name: StaffBelongsToSalon :one
SELECT EXISTS (
    SELECT 1 FROM staff WHERE id = $1 AND salon_id = $2 AND is_active
)
`

type StaffBelongsToSalonParams struct {
	StaffID pgtype.UUID
	SalonID pgtype.UUID
}

func (q *Queries) StaffBelongsToSalon(ctx context.Context, arg StaffBelongsToSalonParams) (bool, error) {
	row := q.db.QueryRow(ctx, staffBelongsToSalon, arg.StaffID, arg.SalonID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
