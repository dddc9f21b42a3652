package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/apptimport/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StartBatch starts committing a job's rows in the background and returns
// the batch id immediately. Only request-level problems are reported here:
// unknown job, invalid mapping, foreign staff, or a batch for the job that
// is still running. Everything else ends up in the batch status.
func (s *Service) StartBatch(ctx context.Context, req StartBatchRequest) (string, error) {
	job, rows, err := s.jobs.Get(req.JobID)
	if err != nil {
		return "", err
	}
	mapping, err := s.resolveMapping(job, req.Mapping)
	if err != nil {
		return "", err
	}
	if err := s.checkStaff(ctx, req.SalonID, req.StaffID); err != nil {
		return "", err
	}

	b, err := s.tracker.register(job.ID, req.SalonID, len(rows))
	if err != nil {
		return "", err
	}
	req.Mapping = mapping

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.WithoutCancel(ctx), b, job, rows, req)
	}()

	return b.id, nil
}

// run owns a batch from queued to terminal.
func (s *Service) run(ctx context.Context, b *trackedBatch, job ImportJob, rows []Row, req StartBatchRequest) {
	log := logging.ForBatch(ctx, b.id, job.ID, req.SalonID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in batch", "panic", r)
			s.complete(ctx, log, b, BatchFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	queuedAt := time.Now()
	if !s.limiter.TryAcquire() {
		log.Info("batch queued", "active", s.limiter.ActiveCount())
		if err := s.limiter.Acquire(ctx); err != nil {
			fatal := &BatchFatalError{Stage: "queue", Err: err}
			log.Error("batch could not start", "error", err)
			s.complete(ctx, log, b, BatchFailed, fatal.Error())
			return
		}
	}
	defer s.limiter.Release()

	s.tracker.begin(b)
	log.Info("batch processing",
		"rows", len(rows),
		"queued_ms", time.Since(queuedAt).Milliseconds(),
	)

	runCtx, cancel := context.WithTimeout(ctx, s.opts.BatchTimeout)
	defer cancel()

	if err := s.process(runCtx, log, b, rows, req); err != nil {
		log.Error("batch failed", "error", err)
		s.complete(ctx, log, b, BatchFailed, err.Error())
		return
	}
	s.complete(ctx, log, b, BatchCompleted, "")
}

// process re-applies validation, resolves services and clients, and commits
// every valid row. A returned error fails the batch.
func (s *Service) process(ctx context.Context, log *slog.Logger, b *trackedBatch, rows []Row, req StartBatchRequest) error {
	validated := ValidateRows(rows, req.Mapping)

	services, err := s.resolveServices(ctx, req.SalonID, validated, req.AutoMapServices)
	if err != nil {
		return &BatchFatalError{Stage: "catalog", Err: err}
	}
	clients, err := s.reconciler.Apply(ctx, req.SalonID, validated, req.CreateGuestUsers)
	if err != nil {
		return &BatchFatalError{Stage: "clients", Err: err}
	}

	valid := make([]Row, 0, len(validated))
	for _, r := range validated {
		if r.Valid() {
			valid = append(valid, r)
			continue
		}
		if err := s.recordRowFailure(ctx, b, r, r.Errors); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, r := range valid {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return s.commitRow(gctx, log, b, r, services, clients, req)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// The group context is only cancelled by a failing worker, so a done
	// parent here means the batch ran out of time.
	if err := ctx.Err(); err != nil {
		return &BatchFatalError{Stage: "commit", Err: err}
	}
	return nil
}

// commitRow persists one appointment. Row-level failures are recorded and
// swallowed unless the request asks to stop on the first one.
func (s *Service) commitRow(ctx context.Context, log *slog.Logger, b *trackedBatch, r Row, services *ServiceResolution, clients *ClientResolution, req StartBatchRequest) error {
	appt, err := s.buildAppointment(b.id, r, services, clients, req)
	if err == nil {
		err = s.deps.Appointments.CreateAppointment(ctx, appt)
	}
	if err == nil {
		s.tracker.recordSuccess(b)
		return nil
	}

	if errors.Is(err, ErrStorageUnavailable) || ctx.Err() != nil {
		return &BatchFatalError{Stage: "commit", Err: err}
	}

	rowErr := &RowCommitError{Row: r.Number, Err: err}
	log.Debug("row failed", "row", r.Number, "error", err)
	if err := s.recordRowFailure(ctx, b, r, []string{err.Error()}); err != nil {
		return err
	}
	if !req.SkipInvalid {
		return rowErr
	}
	return nil
}

func (s *Service) recordRowFailure(ctx context.Context, b *trackedBatch, r Row, reasons []string) error {
	failed := FailedRow{Row: r.Number, Data: r.Raw, Errors: reasons}
	if err := s.deps.Failures.Append(ctx, b.id, failed); err != nil {
		return &BatchFatalError{Stage: "error report", Err: err}
	}
	s.tracker.recordFailure(b)
	return nil
}

// buildAppointment turns a valid row into the appointment to persist.
func (s *Service) buildAppointment(batchID string, r Row, services *ServiceResolution, clients *ClientResolution, req StartBatchRequest) (Appointment, error) {
	client, ok := clients.ForRow(r.Number)
	if !ok || client.Kind == ClientUnresolved || client.ClientID == "" {
		return Appointment{}, errUnresolvedClient
	}

	f := r.Fields
	startsAt := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, s.opts.Location).Add(f.TimeOfDay)

	appt := Appointment{
		ID:            uuid.NewString(),
		SalonID:       req.SalonID,
		ClientID:      client.ClientID,
		StaffID:       req.StaffID,
		StartsAt:      startsAt,
		Notes:         f.Notes,
		SourceBatchID: batchID,
		SourceRow:     r.Number,
		Status:        AppointmentStatusCompleted,
	}

	var serviceMinutes int
	for _, name := range f.Services {
		m, ok := services.Lookup(name)
		if !ok || m.ServiceID == "" {
			continue
		}
		appt.ServiceIDs = append(appt.ServiceIDs, m.ServiceID)
		if svc, ok := services.Service(m.ServiceID); ok {
			serviceMinutes += svc.DurationMinutes
		}
	}
	if len(appt.ServiceIDs) > 0 {
		appt.ServiceID = appt.ServiceIDs[0]
	}

	duration := s.opts.DefaultDuration
	switch {
	case f.DurationMinutes > 0:
		duration = time.Duration(f.DurationMinutes) * time.Minute
	case serviceMinutes > 0:
		duration = time.Duration(serviceMinutes) * time.Minute
	}
	appt.EndsAt = startsAt.Add(duration)

	return appt, nil
}

// complete moves a batch to its terminal state and records it.
func (s *Service) complete(ctx context.Context, log *slog.Logger, b *trackedBatch, status BatchStatus, errMsg string) {
	snap := s.tracker.finish(b, status, errMsg)

	log.Info("batch finished",
		"status", snap.Status,
		"total_rows", snap.TotalRows,
		"successful_rows", snap.SuccessfulRows,
		"failed_rows", snap.FailedRows,
	)

	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.RecordBatch(ctx, snap); err != nil {
		log.Warn("failed to record batch history", "error", err)
	}
}
