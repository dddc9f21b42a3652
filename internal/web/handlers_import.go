package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the room left for form boundaries and headers on top
// of the file size limit. Files over the limit are rejected by the core.
const multipartOverhead = 64 << 10

// handleIngest accepts a multipart upload in the "file" field.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, fmt.Errorf("%w: %v", &core.FileSizeError{Limit: maxSize}, err))
			return
		}
		s.respondError(w, r, badRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf(`form field "file": %w`, core.ErrNoFile))
		return
	}
	defer file.Close()

	res, err := s.service.Ingest(r.Context(), core.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, res)
}

// handleValidate runs a dry run over an ingested job.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req importOptionsRequest
	if err := decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.Validate(r.Context(), jobID, req.options())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleStartBatch starts committing a job and answers 202 with the batch id.
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req startBatchRequest
	if err := decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequester(r.Context(), r)
	batchID, err := s.service.StartBatch(ctx, core.StartBatchRequest{
		JobID:         jobID,
		ImportOptions: req.options(),
		SkipInvalid:   boolOr(req.SkipInvalid, true),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/batches/"+batchID)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}
