package database

import (
	"context"
	"net/netip"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertFailedRow = `-- name: InsertFailedRow :exec
INSERT INTO import_failed_rows (batch_id, row_number, data, errors)
VALUES ($1, $2, $3, $4)
ON CONFLICT (batch_id, row_number) DO UPDATE
SET errors = import_failed_rows.errors || EXCLUDED.errors
`

type InsertFailedRowParams struct {
	BatchID   pgtype.UUID
	RowNumber int32
	Data      []byte
	Errors    []string
}

func (q *Queries) InsertFailedRow(ctx context.Context, arg InsertFailedRowParams) error {
	_, err := q.db.Exec(ctx, insertFailedRow,
		arg.BatchID,
		arg.RowNumber,
		arg.Data,
		arg.Errors,
	)
	return err
}

const listFailedRows = `-- name: ListFailedRows :many
SELECT batch_id, row_number, data, errors, created_at
FROM import_failed_rows
WHERE batch_id = $1
ORDER BY row_number
`

func (q *Queries) ListFailedRows(ctx context.Context, batchID pgtype.UUID) ([]ImportFailedRow, error) {
	rows, err := q.db.Query(ctx, listFailedRows, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportFailedRow
	for rows.Next() {
		var i ImportFailedRow
		if err := rows.Scan(
			&i.BatchID,
			&i.RowNumber,
			&i.Data,
			&i.Errors,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertImportBatch = `-- name: UpsertImportBatch :exec
INSERT INTO import_batches (
    id, job_id, salon_id, status, total_rows, successful_rows, failed_rows,
    error, requested_ip, user_agent, created_at, started_at, finished_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id) DO UPDATE SET
    status          = EXCLUDED.status,
    successful_rows = EXCLUDED.successful_rows,
    failed_rows     = EXCLUDED.failed_rows,
    error           = EXCLUDED.error,
    started_at      = EXCLUDED.started_at,
    finished_at     = EXCLUDED.finished_at
`

type UpsertImportBatchParams struct {
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

func (q *Queries) UpsertImportBatch(ctx context.Context, arg UpsertImportBatchParams) error {
	_, err := q.db.Exec(ctx, upsertImportBatch,
		arg.ID,
		arg.JobID,
		arg.SalonID,
		arg.Status,
		arg.TotalRows,
		arg.SuccessfulRows,
		arg.FailedRows,
		arg.Error,
		arg.RequestedIp,
		arg.UserAgent,
		arg.CreatedAt,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const getImportBatch = `-- name: GetImportBatch :one
SELECT id, job_id, salon_id, status, total_rows, successful_rows, failed_rows,
       error, requested_ip, user_agent, created_at, started_at, finished_at
FROM import_batches
WHERE id = $1
`

func (q *Queries) GetImportBatch(ctx context.Context, id pgtype.UUID) (ImportBatch, error) {
	row := q.db.QueryRow(ctx, getImportBatch, id)
	var i ImportBatch
	err := row.Scan(
		&i.ID,
		&i.JobID,
		&i.SalonID,
		&i.Status,
		&i.TotalRows,
		&i.SuccessfulRows,
		&i.FailedRows,
		&i.Error,
		&i.RequestedIp,
		&i.UserAgent,
		&i.CreatedAt,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}
