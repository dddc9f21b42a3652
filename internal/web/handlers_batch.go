package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleBatchStatus returns the current state of a batch. Batches evicted
// from memory are answered from the recorded history when available.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	snap, err := s.service.PollStatus(batchID)
	if errors.Is(err, core.ErrBatchNotFound) && s.history != nil {
		snap, err = s.history.LookupBatch(r.Context(), batchID)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// handleBatchEvents streams batch progress via Server-Sent Events until the
// batch is terminal. The event id is the progress percentage; a client
// reconnecting with lastEventId skips what it has already seen.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	lastEventID := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	} else if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	}

	updates, unsubscribe, err := s.service.Subscribe(batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}

			event := "progress"
			if snap.Status.IsTerminal() {
				event = "complete"
			} else if snap.Progress <= lastEventID {
				continue
			}

			data, _ := json.Marshal(snap)
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snap.Progress, event, data)
			if err := rc.Flush(); err != nil {
				return
			}
			if event == "complete" {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleErrorReport exports the failed rows of a finished batch as CSV
// (default), JSON or an HTML page.
func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv", "json", "html":
	default:
		s.respondError(w, r, badRequest("format must be csv, json or html"))
		return
	}

	report, err := s.service.FetchErrorReport(r.Context(), batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	switch format {
	case "json":
		writeJSON(w, report)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := reportPage(report).Render(r.Context(), w); err != nil {
			s.logger(r).Error("render error report", "error", err)
		}
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import_errors_%s.csv"`, batchID))
		if err := report.WriteCSV(w); err != nil {
			s.logger(r).Error("write error report", "error", err)
		}
	}
}

// handleHealth reports liveness, database reachability and batch slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"batches": s.service.LimiterStatus(),
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger(r).Warn("health check: database unreachable", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			writeJSONStatus(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	writeJSON(w, resp)
}
