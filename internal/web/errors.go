package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client gets the
// user message from core.MapError with its support code. The HTTP status is
// derived from the error itself, so handlers just pass errors through.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/JonMunkholm/apptimport/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// requestError is a malformed request. Its message is safe to show as is.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var reqErr *requestError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrInvalidFile),
		errors.Is(err, core.ErrEmptyPayload),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrInvalidMapping),
		errors.Is(err, core.ErrUnknownStaff):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrJobNotFound), errors.Is(err, core.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBatchAlreadyRunning), errors.Is(err, core.ErrBatchNotFinished):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyBatches):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	level := slog.LevelWarn
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		msg = core.UserMessage{Message: reqErr.msg, Action: "Fix the request and try again", Code: "REQ400"}
	} else if status >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		// unmapped errors need the logs to be diagnosed
		level = slog.LevelError
	}

	logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
	).Log(r.Context(), level, "request error",
		"error", err.Error(),
		"user_error", core.FormatUserError(err),
	)

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = errorAlert(msg).Render(r.Context(), w)
		return
	}
	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v with status. Encoding errors are only logged
// since the header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
