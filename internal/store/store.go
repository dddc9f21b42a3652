// Package store adapts the database queries to the collaborators the import
// core writes through.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/apptimport/internal/core"
	db "github.com/JonMunkholm/apptimport/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Pool is the part of *pgxpool.Pool the store needs.
type Pool interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements core.Catalog, core.ClientDirectory,
// core.AppointmentWriter, core.FailureStore and core.BatchRecorder on
// PostgreSQL.
type Store struct {
	pool Pool
	q    *db.Queries
}

var (
	_ core.Catalog           = (*Store)(nil)
	_ core.ClientDirectory   = (*Store)(nil)
	_ core.AppointmentWriter = (*Store)(nil)
	_ core.FailureStore      = (*Store)(nil)
	_ core.BatchRecorder     = (*Store)(nil)
)

// New creates a Store on pool.
func New(pool Pool) *Store {
	return &Store{pool: pool, q: db.New(pool)}
}

// Dependencies wires the store into every slot of core.Dependencies.
func (s *Store) Dependencies() core.Dependencies {
	return core.Dependencies{
		Catalog:      s,
		Clients:      s,
		Appointments: s,
		Failures:     s,
		History:      s,
	}
}

/* ----------------------------------------
	Catalog
---------------------------------------- */

func (s *Store) ActiveServices(ctx context.Context, salonID string) ([]core.CatalogService, error) {
	id := toPgUUID(salonID)
	if !id.Valid {
		return nil, nil
	}
	rows, err := s.q.ListActiveServices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	out := make([]core.CatalogService, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CatalogService{
			ID:              uuidToString(r.ID),
			Name:            r.Name,
			DurationMinutes: int(r.DurationMinutes),
		})
	}
	return out, nil
}

func (s *Store) StaffBelongsToSalon(ctx context.Context, salonID, staffID string) (bool, error) {
	salon, staff := toPgUUID(salonID), toPgUUID(staffID)
	if !salon.Valid || !staff.Valid {
		return false, nil
	}
	ok, err := s.q.StaffBelongsToSalon(ctx, db.StaffBelongsToSalonParams{StaffID: staff, SalonID: salon})
	if err != nil {
		return false, fmt.Errorf("check staff: %w", err)
	}
	return ok, nil
}

/* ----------------------------------------
	Client directory
---------------------------------------- */

func (s *Store) FindByEmail(ctx context.Context, salonID, email string) (string, error) {
	salon := toPgUUID(salonID)
	if !salon.Valid {
		return "", nil
	}
	id, err := s.q.FindClientByEmail(ctx, db.FindClientByEmailParams{SalonID: salon, Email: email})
	return foundID(id, err)
}

func (s *Store) FindByPhone(ctx context.Context, salonID, phone string) (string, error) {
	salon := toPgUUID(salonID)
	if !salon.Valid {
		return "", nil
	}
	id, err := s.q.FindClientByPhone(ctx, db.FindClientByPhoneParams{SalonID: salon, Phone: phone})
	return foundID(id, err)
}

func (s *Store) EnsureGuest(ctx context.Context, salonID string, guest core.GuestAccount) error {
	err := s.q.InsertGuestClient(ctx, db.InsertGuestClientParams{
		ID:      toPgUUID(guest.ID),
		SalonID: toPgUUID(salonID),
		Name:    guest.Name,
		Email:   toPgText(guest.Email),
		Phone:   toPgText(guest.Phone),
	})
	if err != nil {
		return fmt.Errorf("create guest %s: %w", guest.ID, err)
	}
	return nil
}

/* ----------------------------------------
	Appointments
---------------------------------------- */

// CreateAppointment inserts the appointment and its service lines in one
// transaction.
func (s *Store) CreateAppointment(ctx context.Context, appt core.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) // no-op after commit

	qtx := s.q.WithTx(tx)

	apptID := toPgUUID(appt.ID)
	err = qtx.InsertAppointment(ctx, db.InsertAppointmentParams{
		ID:            apptID,
		SalonID:       toPgUUID(appt.SalonID),
		ClientID:      toPgUUID(appt.ClientID),
		StaffID:       toPgUUID(appt.StaffID),
		ServiceID:     toPgUUID(appt.ServiceID),
		StartsAt:      toPgTime(appt.StartsAt),
		EndsAt:        toPgTime(appt.EndsAt),
		Status:        appt.Status,
		Notes:         toPgText(appt.Notes),
		SourceBatchID: toPgUUID(appt.SourceBatchID),
		SourceRow:     toPgInt4(appt.SourceRow),
	})
	if err != nil {
		return classify(err)
	}

	for i, serviceID := range appt.ServiceIDs {
		err := qtx.InsertAppointmentService(ctx, db.InsertAppointmentServiceParams{
			AppointmentID: apptID,
			ServiceID:     toPgUUID(serviceID),
			Position:      int32(i),
		})
		if err != nil {
			return classify(err)
		}
	}

	return classify(tx.Commit(ctx))
}

/* ----------------------------------------
	Failed rows
---------------------------------------- */

func (s *Store) Append(ctx context.Context, batchID string, row core.FailedRow) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("encode row %d: %w", row.Row, err)
	}
	err = s.q.InsertFailedRow(ctx, db.InsertFailedRowParams{
		BatchID:   toPgUUID(batchID),
		RowNumber: int32(row.Row),
		Data:      data,
		Errors:    row.Errors,
	})
	if err != nil {
		return fmt.Errorf("store failed row %d: %w", row.Row, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, batchID string) ([]core.FailedRow, error) {
	id := toPgUUID(batchID)
	if !id.Valid {
		return nil, nil
	}
	rows, err := s.q.ListFailedRows(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]core.FailedRow, 0, len(rows))
	for _, r := range rows {
		fr := core.FailedRow{Row: int(r.RowNumber), Errors: r.Errors}
		if err := json.Unmarshal(r.Data, &fr.Data); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", r.RowNumber, err)
		}
		out = append(out, fr)
	}
	return out, nil
}

/* ----------------------------------------
	Batch history
---------------------------------------- */

// RecordBatch upserts a batch summary. The requester attached to ctx, if
// any, is stored with it.
func (s *Store) RecordBatch(ctx context.Context, snap core.BatchSnapshot) error {
	req := core.RequesterFromContext(ctx)
	return s.q.UpsertImportBatch(ctx, db.UpsertImportBatchParams{
		ID:             toPgUUID(snap.BatchID),
		JobID:          toPgUUID(snap.JobID),
		SalonID:        toPgUUID(snap.SalonID),
		Status:         string(snap.Status),
		TotalRows:      int32(snap.TotalRows),
		SuccessfulRows: int32(snap.SuccessfulRows),
		FailedRows:     int32(snap.FailedRows),
		Error:          toPgText(snap.Error),
		RequestedIp:    toAddr(req.IPAddress),
		UserAgent:      toPgText(req.UserAgent),
		CreatedAt:      toPgTime(snap.CreatedAt),
		StartedAt:      toPgTimePtr(snap.StartedAt),
		FinishedAt:     toPgTimePtr(snap.FinishedAt),
	})
}

// LookupBatch returns a recorded batch. It serves status requests for
// batches that no longer live in memory.
func (s *Store) LookupBatch(ctx context.Context, batchID string) (core.BatchSnapshot, error) {
	id := toPgUUID(batchID)
	if !id.Valid {
		return core.BatchSnapshot{}, core.ErrBatchNotFound
	}
	row, err := s.q.GetImportBatch(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.BatchSnapshot{}, core.ErrBatchNotFound
	}
	if err != nil {
		return core.BatchSnapshot{}, err
	}
	return batchFromRow(row), nil
}

func batchFromRow(row db.ImportBatch) core.BatchSnapshot {
	snap := core.BatchSnapshot{
		BatchID:        uuidToString(row.ID),
		JobID:          uuidToString(row.JobID),
		SalonID:        uuidToString(row.SalonID),
		Status:         core.BatchStatus(row.Status),
		TotalRows:      int(row.TotalRows),
		SuccessfulRows: int(row.SuccessfulRows),
		FailedRows:     int(row.FailedRows),
		CreatedAt:      row.CreatedAt.Time,
		StartedAt:      timePtr(row.StartedAt),
		FinishedAt:     timePtr(row.FinishedAt),
	}
	if row.Error.Valid {
		snap.Error = row.Error.String
	}
	snap.Progress = 100
	if snap.TotalRows > 0 && !snap.Status.IsTerminal() {
		snap.Progress = (snap.SuccessfulRows + snap.FailedRows) * 100 / snap.TotalRows
	}
	return snap
}

func foundID(id pgtype.UUID, err error) (string, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return uuidToString(id), nil
}
