package core

import (
	"context"
	"time"
)

// FormatKind identifies one of the supported upload formats.
type FormatKind string

const (
	FormatDelimited FormatKind = "delimited"
	FormatJSON      FormatKind = "json"
	FormatXLSX      FormatKind = "xlsx"
	FormatXLS       FormatKind = "xls"
)

// ImportJob is one parsed upload. It is immutable once created.
type ImportJob struct {
	ID        string     `json:"job_id"`
	FileName  string     `json:"filename"`
	Size      int64      `json:"size"`
	Format    FormatKind `json:"format"`
	Columns   []string   `json:"detected_columns"`
	TotalRows int        `json:"total_rows"`
	CreatedAt time.Time  `json:"created_at"`
}

// Field is a normalized appointment field a raw column can be mapped onto.
type Field string

const (
	FieldClientName  Field = "client_name"
	FieldClientEmail Field = "client_email"
	FieldClientPhone Field = "client_phone"
	FieldDate        Field = "date"
	FieldTime        Field = "time"
	FieldServices    Field = "services"
	FieldDuration    Field = "duration"
	FieldNotes       Field = "notes"
)

// AllFields lists the normalized fields in display order.
var AllFields = []Field{
	FieldClientName, FieldClientEmail, FieldClientPhone,
	FieldDate, FieldTime, FieldServices, FieldDuration, FieldNotes,
}

// ColumnMapping maps a normalized field to the detected column that feeds it.
type ColumnMapping map[Field]string

// RowFields holds the normalized values of a row after mapping.
type RowFields struct {
	ClientName      string        `json:"client_name,omitempty"`
	ClientEmail     string        `json:"client_email,omitempty"`
	ClientPhone     string        `json:"client_phone,omitempty"`
	Date            time.Time     `json:"date"`
	TimeOfDay       time.Duration `json:"time_of_day"`
	Services        []string      `json:"services,omitempty"`
	DurationMinutes int           `json:"duration_minutes,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// Row is one record of an upload, numbered from 1 in file order.
// Raw holds every detected column; Extra holds the ones no field is mapped to.
type Row struct {
	Number int               `json:"row"`
	Raw    map[string]string `json:"data"`
	Fields RowFields         `json:"fields"`
	Extra  map[string]string `json:"extra,omitempty"`
	Errors []string          `json:"errors"`
}

// Valid reports whether the row passed every validation rule.
func (r Row) Valid() bool {
	return len(r.Errors) == 0
}

// PreviewRow is the raw data of one row returned with an ingest result.
type PreviewRow struct {
	Row  int               `json:"row"`
	Data map[string]string `json:"data"`
}

// IngestResult is returned to the caller of Ingest.
type IngestResult struct {
	Job              ImportJob     `json:"job"`
	SuggestedMapping ColumnMapping `json:"suggested_mapping"`
	Preview          []PreviewRow  `json:"preview"`
}

// ImportOptions are the choices shared by Validate and StartBatch.
type ImportOptions struct {
	SalonID          string
	StaffID          string // optional default staff member
	Mapping          ColumnMapping
	AutoMapServices  bool
	CreateGuestUsers bool
}

// StartBatchRequest starts asynchronous processing of a job.
type StartBatchRequest struct {
	JobID string
	ImportOptions
	SkipInvalid bool
}

// FailedRow is one row that could not be imported, with its raw data.
type FailedRow struct {
	Row    int               `json:"row"`
	Data   map[string]string `json:"data"`
	Errors []string          `json:"errors"`
}

// MatchKind describes how an imported service name was resolved.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

// CatalogService is an active service offered by a salon.
type CatalogService struct {
	ID              string
	Name            string
	DurationMinutes int
}

// ServiceMapping is the resolution of one distinct imported service name.
type ServiceMapping struct {
	ImportedName string    `json:"imported_name"`
	ServiceID    string    `json:"service_id,omitempty"`
	ServiceName  string    `json:"service_name,omitempty"`
	Kind         MatchKind `json:"match_kind"`
	Score        float64   `json:"score,omitempty"`
}

// ServiceMappingSummary aggregates the service mappings of a job.
type ServiceMappingSummary struct {
	Matched   int              `json:"matched"`
	Unmatched int              `json:"unmatched"`
	Mappings  []ServiceMapping `json:"mappings"`
}

// ClientKind describes how a row's client was resolved.
type ClientKind string

const (
	ClientExisting   ClientKind = "existing"
	ClientNewGuest   ClientKind = "new_guest"
	ClientUnresolved ClientKind = "unresolved"
)

// ClientRecord is the resolution of one deduplicated client within a job.
type ClientRecord struct {
	Key      string     `json:"key"`
	Kind     ClientKind `json:"kind"`
	ClientID string     `json:"client_id,omitempty"`
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	Phone    string     `json:"phone,omitempty"`
}

// UserCreationSummary counts distinct clients by resolution kind.
type UserCreationSummary struct {
	ExistingCount   int `json:"existing_count"`
	NewGuestCount   int `json:"new_guest_count"`
	UnresolvedCount int `json:"unresolved_count"`
}

// ValidationReport is the result of a dry run over a job.
type ValidationReport struct {
	JobID          string                `json:"job_id"`
	TotalRows      int                   `json:"total_rows"`
	ValidRows      int                   `json:"valid_rows"`
	InvalidRows    int                   `json:"invalid_rows"`
	Errors         []FailedRow           `json:"errors"`
	ServiceMapping ServiceMappingSummary `json:"service_mapping"`
	UserCreation   UserCreationSummary   `json:"user_creation"`
}

// BatchStatus is the state of an ImportBatch.
type BatchStatus string

const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// IsTerminal reports whether no further transition can leave s.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchSnapshot is a point-in-time copy of a batch's state.
type BatchSnapshot struct {
	BatchID        string      `json:"batch_id"`
	JobID          string      `json:"job_id"`
	SalonID        string      `json:"salon_id"`
	Status         BatchStatus `json:"status"`
	Progress       int         `json:"progress"`
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
	Error          string      `json:"error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
}

// Appointment is one historical appointment committed by a batch.
type Appointment struct {
	ID            string
	SalonID       string
	ClientID      string
	StaffID       string // empty when no default staff was chosen
	ServiceID     string // primary service, empty when nothing matched
	ServiceIDs    []string
	StartsAt      time.Time
	EndsAt        time.Time
	Notes         string
	SourceBatchID string
	SourceRow     int
	Status        string
}

// AppointmentStatusCompleted is the status of every imported appointment.
const AppointmentStatusCompleted = "completed"

// GuestAccount is a placeholder client created for an unmatched row.
type GuestAccount struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Catalog reads a salon's services and staff.
type Catalog interface {
	ActiveServices(ctx context.Context, salonID string) ([]CatalogService, error)
	StaffBelongsToSalon(ctx context.Context, salonID, staffID string) (bool, error)
}

// ClientDirectory looks up and creates client accounts.
// The Find methods return an empty id when nothing matches.
type ClientDirectory interface {
	FindByEmail(ctx context.Context, salonID, email string) (string, error)
	FindByPhone(ctx context.Context, salonID, phone string) (string, error)
	// EnsureGuest creates the guest if it does not exist yet. It must be
	// idempotent for the same guest id.
	EnsureGuest(ctx context.Context, salonID string, guest GuestAccount) error
}

// AppointmentWriter persists one appointment atomically.
// Errors wrapping ErrStorageUnavailable are fatal to the batch; any other
// error fails only the row.
type AppointmentWriter interface {
	CreateAppointment(ctx context.Context, appt Appointment) error
}

// FailureStore keeps failed rows per batch until the report is fetched.
type FailureStore interface {
	Append(ctx context.Context, batchID string, row FailedRow) error
	List(ctx context.Context, batchID string) ([]FailedRow, error)
}

// BatchRecorder persists batch summaries. Optional.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, snap BatchSnapshot) error
}
