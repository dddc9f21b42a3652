package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/apptimport/internal/logging"
)

// Options tune the import pipeline. Zero values fall back to defaults.
type Options struct {
	MaxFileSize          int64
	PreviewRows          int
	ErrorSamples         int
	Workers              int
	MaxConcurrentBatches int
	QueueWait            time.Duration
	BatchTimeout         time.Duration
	MatchThreshold       float64
	DefaultDuration      time.Duration
	Location             *time.Location
	DefaultCharset       string
}

func (o Options) withDefaults() Options {
	if o.ErrorSamples <= 0 {
		o.ErrorSamples = 10
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 30 * time.Minute
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = time.Hour
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Dependencies are the collaborators the import core writes through.
type Dependencies struct {
	Catalog      Catalog
	Clients      ClientDirectory
	Appointments AppointmentWriter
	Failures     FailureStore
	History      BatchRecorder // optional
}

// Service runs historical appointment imports: ingest, validate, execute
// batches, report progress and failures.
type Service struct {
	opts Options
	deps Dependencies

	ingestor   *Ingestor
	jobs       *JobStore
	tracker    *Tracker
	matcher    *ServiceMatcher
	reconciler *ClientReconciler
	limiter    *BatchLimiter

	wg sync.WaitGroup
}

// NewService creates a Service.
func NewService(deps Dependencies, opts Options) (*Service, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("core: catalog is required")
	case deps.Clients == nil:
		return nil, errors.New("core: client directory is required")
	case deps.Appointments == nil:
		return nil, errors.New("core: appointment writer is required")
	case deps.Failures == nil:
		return nil, errors.New("core: failure store is required")
	}

	opts = opts.withDefaults()
	return &Service{
		opts:       opts,
		deps:       deps,
		ingestor:   NewIngestor(opts.MaxFileSize, opts.PreviewRows, opts.DefaultCharset),
		jobs:       NewJobStore(),
		tracker:    NewTracker(),
		matcher:    NewServiceMatcher(opts.MatchThreshold),
		reconciler: NewClientReconciler(deps.Clients),
		limiter:    NewBatchLimiter(opts.MaxConcurrentBatches, opts.QueueWait),
	}, nil
}

// Ingest parses an upload and keeps it for the later stages.
func (s *Service) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	parsed, err := s.ingestor.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}
	s.jobs.Put(parsed.Job, parsed.Rows)

	logging.FromContext(ctx).Info("import file ingested",
		"job_id", parsed.Job.ID,
		"filename", parsed.Job.FileName,
		"format", parsed.Job.Format,
		"size", parsed.Job.Size,
		"rows", parsed.Job.TotalRows,
	)

	return &IngestResult{
		Job:              parsed.Job,
		SuggestedMapping: parsed.Mapping,
		Preview:          parsed.Preview,
	}, nil
}

// Job returns a stored job.
func (s *Service) Job(jobID string) (ImportJob, error) {
	job, _, err := s.jobs.Get(jobID)
	return job, err
}

// Validate runs the whole pipeline without writing anything and reports
// what a batch would do. A nil mapping uses the mapping suggested from the
// header.
func (s *Service) Validate(ctx context.Context, jobID string, opts ImportOptions) (*ValidationReport, error) {
	job, rows, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.resolveMapping(job, opts.Mapping)
	if err != nil {
		return nil, err
	}
	if err := s.checkStaff(ctx, opts.SalonID, opts.StaffID); err != nil {
		return nil, err
	}

	validated := ValidateRows(rows, mapping)

	services, err := s.resolveServices(ctx, opts.SalonID, validated, opts.AutoMapServices)
	if err != nil {
		return nil, err
	}
	clients, err := s.reconciler.Plan(ctx, opts.SalonID, validated, opts.CreateGuestUsers)
	if err != nil {
		return nil, fmt.Errorf("reconcile clients: %w", err)
	}

	report := &ValidationReport{
		JobID:          job.ID,
		TotalRows:      job.TotalRows,
		Errors:         []FailedRow{},
		ServiceMapping: services.Summary(),
		UserCreation:   clients.Summary(),
	}
	for _, r := range validated {
		if r.Valid() {
			report.ValidRows++
			continue
		}
		report.InvalidRows++
		if len(report.Errors) < s.opts.ErrorSamples {
			report.Errors = append(report.Errors, FailedRow{Row: r.Number, Data: r.Raw, Errors: r.Errors})
		}
	}

	logging.FromContext(ctx).Info("import validated",
		"job_id", job.ID,
		"valid_rows", report.ValidRows,
		"invalid_rows", report.InvalidRows,
		"services_matched", report.ServiceMapping.Matched,
		"services_unmatched", report.ServiceMapping.Unmatched,
		"new_guests", report.UserCreation.NewGuestCount,
	)
	return report, nil
}

// PollStatus returns the current state of a batch.
func (s *Service) PollStatus(batchID string) (BatchSnapshot, error) {
	return s.tracker.Snapshot(batchID)
}

// Subscribe streams state changes of a batch until it is terminal.
func (s *Service) Subscribe(batchID string) (<-chan BatchSnapshot, func(), error) {
	return s.tracker.Subscribe(batchID)
}

// WaitForBatch blocks until a batch is terminal and returns its final state.
func (s *Service) WaitForBatch(ctx context.Context, batchID string) (BatchSnapshot, error) {
	done, err := s.tracker.Done(batchID)
	if err != nil {
		return BatchSnapshot{}, err
	}
	select {
	case <-done:
		return s.tracker.Snapshot(batchID)
	case <-ctx.Done():
		return BatchSnapshot{}, ctx.Err()
	}
}

// WaitForBatches blocks until every started batch has finished. Used for
// graceful shutdown.
func (s *Service) WaitForBatches(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus reports batch slot usage.
func (s *Service) LimiterStatus() BatchLimiterStatus {
	return s.limiter.Status()
}

// resolveMapping checks that every mapped column exists in the job.
func (s *Service) resolveMapping(job ImportJob, mapping ColumnMapping) (ColumnMapping, error) {
	if len(mapping) == 0 {
		return SuggestMapping(job.Columns), nil
	}

	known := make(map[string]bool, len(job.Columns))
	for _, c := range job.Columns {
		known[c] = true
	}
	fields := make(map[Field]bool, len(AllFields))
	for _, f := range AllFields {
		fields[f] = true
	}

	for f, col := range mapping {
		if !fields[f] {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidMapping, f)
		}
		if col != "" && !known[col] {
			return nil, fmt.Errorf("%w: column %q is not in the file", ErrInvalidMapping, col)
		}
	}
	return mapping, nil
}

func (s *Service) checkStaff(ctx context.Context, salonID, staffID string) error {
	if staffID == "" {
		return nil
	}
	ok, err := s.deps.Catalog.StaffBelongsToSalon(ctx, salonID, staffID)
	if err != nil {
		return fmt.Errorf("check staff: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStaff, staffID)
	}
	return nil
}

func (s *Service) resolveServices(ctx context.Context, salonID string, rows []Row, autoMap bool) (*ServiceResolution, error) {
	var catalog []CatalogService
	if autoMap {
		var err error
		catalog, err = s.deps.Catalog.ActiveServices(ctx, salonID)
		if err != nil {
			return nil, fmt.Errorf("load service catalog: %w", err)
		}
	}
	return s.matcher.Resolve(catalog, distinctServices(rows), autoMap), nil
}
