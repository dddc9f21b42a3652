package core

import (
	"errors"
	"fmt"
)

// Ingestion errors.
var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyPayload      = errors.New("empty file")
	ErrInvalidFile       = errors.New("invalid file")
)

// Precondition errors on jobs and batches.
var (
	ErrJobNotFound         = errors.New("import job not found")
	ErrBatchNotFound       = errors.New("import batch not found")
	ErrBatchAlreadyRunning = errors.New("batch already running for this import")
	ErrBatchNotFinished    = errors.New("batch not finished")
	ErrUnknownStaff        = errors.New("staff member does not belong to this salon")
	ErrInvalidMapping      = errors.New("invalid column mapping")
	ErrTooManyBatches      = errors.New("too many batches in progress")
)

// ErrStorageUnavailable marks errors that make further commits pointless.
var ErrStorageUnavailable = errors.New("storage unavailable")

// FileSizeError is returned for uploads over the configured limit. It
// matches ErrFileTooLarge with errors.Is.
type FileSizeError struct {
	Limit int64
}

func (e *FileSizeError) Error() string {
	return fmt.Sprintf("%v: more than %d bytes", ErrFileTooLarge, e.Limit)
}

func (e *FileSizeError) Is(target error) bool {
	return target == ErrFileTooLarge
}

// ErrNoFile is returned when an upload request carries no file.
var ErrNoFile = errors.New("no file provided")

// errUnresolvedClient fails rows whose client has no account and guest
// creation is disabled.
var errUnresolvedClient = errors.New("client not found and guest creation is disabled")

// RowCommitError is a failure to persist one row. It never aborts a batch
// that skips invalid rows.
type RowCommitError struct {
	Row int
	Err error
}

func (e *RowCommitError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowCommitError) Unwrap() error {
	return e.Err
}

// BatchFatalError terminates a batch as failed.
type BatchFatalError struct {
	Stage string
	Err   error
}

func (e *BatchFatalError) Error() string {
	return fmt.Sprintf("batch failed during %s: %v", e.Stage, e.Err)
}

func (e *BatchFatalError) Unwrap() error {
	return e.Err
}
