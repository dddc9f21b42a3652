package core

// error_messages.go maps technical errors to messages an importing user can
// act on, each with a code support staff can look up.
//
// Codes by category:
//
//	FILE001-FILE005  upload problems (size, format, unreadable, missing, empty)
//	IMP001-IMP003    import requests (expired job, bad mapping, foreign staff)
//	BAT001-BAT004    batches (already running, not finished, unknown, busy)
//	DB001-DB008      storage (constraints, connectivity, unavailable)
//	REQ001-REQ002    request cancelled or timed out
//	RATE001          request throttling
//	ERR000           anything else; check the logs for the original error
//
// Known sentinel errors are matched with errors.Is first. Other errors fall
// back to case-insensitive substring patterns, first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the size limit",
		Action:  "Split the appointment history into smaller files",
		Code:    "FILE001",
	}
	msgUnsupportedFormat = UserMessage{
		Message: "File format is not supported",
		Action:  "Upload a CSV, JSON, XLSX or XLS file",
		Code:    "FILE002",
	}
	msgInvalidFile = UserMessage{
		Message: "File could not be read",
		Action:  "Check that the file is not damaged and matches its extension",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to import",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row and appointments",
		Code:    "FILE005",
	}
	msgJobNotFound = UserMessage{
		Message: "Import session not found",
		Action:  "The upload may have expired. Please upload the file again",
		Code:    "IMP001",
	}
	msgInvalidMapping = UserMessage{
		Message: "Column mapping does not match the file",
		Action:  "Map each field to a column from the uploaded file",
		Code:    "IMP002",
	}
	msgUnknownStaff = UserMessage{
		Message: "Selected staff member does not work at this salon",
		Action:  "Choose a staff member from the salon",
		Code:    "IMP003",
	}
	msgBatchRunning = UserMessage{
		Message: "An import for this file is already running",
		Action:  "Wait for it to finish before starting another",
		Code:    "BAT001",
	}
	msgBatchNotFinished = UserMessage{
		Message: "Import has not finished yet",
		Action:  "The error report is available once the import completes",
		Code:    "BAT002",
	}
	msgBatchNotFound = UserMessage{
		Message: "Import batch not found",
		Action:  "The batch may have expired. Check the import history",
		Code:    "BAT003",
	}
	msgTooManyBatches = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "BAT004",
	}
	msgStorageUnavailable = UserMessage{
		Message: "Appointment storage is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "DB008",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimedOut = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "REQ002",
	}
)

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrNoFile, msgNoFile},
	{ErrUnsupportedFormat, msgUnsupportedFormat},
	{ErrInvalidFile, msgInvalidFile},
	{ErrEmptyPayload, msgEmptyFile},
	{ErrJobNotFound, msgJobNotFound},
	{ErrInvalidMapping, msgInvalidMapping},
	{ErrUnknownStaff, msgUnknownStaff},
	{ErrBatchAlreadyRunning, msgBatchRunning},
	{ErrBatchNotFinished, msgBatchNotFinished},
	{ErrBatchNotFound, msgBatchNotFound},
	{ErrTooManyBatches, msgTooManyBatches},
	{ErrStorageUnavailable, msgStorageUnavailable},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{
		Message: "This appointment already exists",
		Action:  "Download the error report to review duplicates",
		Code:    "DB001",
	}},
	{"violates unique", UserMessage{
		Message: "A duplicate value was found",
		Action:  "Review the file for repeated appointments",
		Code:    "DB002",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced client, staff or service does not exist",
		Action:  "Check the salon catalog and try again",
		Code:    "DB003",
	}},
	{"violates check constraint", UserMessage{
		Message: "Appointment data is out of range",
		Action:  "Check dates, times and durations in the error report",
		Code:    "DB004",
	}},

	// Database connectivity
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB005",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Request lifecycle
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimedOut},
	{"timeout", msgTimedOut},

	// Throttling
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("start batch: %w", ErrBatchAlreadyRunning))
//	// msg.Code == "BAT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var sizeErr *FileSizeError
	if errors.As(err, &sizeErr) && sizeErr.Limit > 0 {
		msg := msgFileTooLarge
		msg.Message = fmt.Sprintf("File exceeds the %s size limit", formatBytes(sizeErr.Limit))
		return msg
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// formatBytes renders n in the largest whole binary unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%d bytes", n)
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
