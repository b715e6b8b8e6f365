package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"budgetintel/internal/core"
	blog "budgetintel/internal/log"
	"budgetintel/internal/services"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.api.ListLedgers(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	keys, err := s.api.ListLedgers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ledgers": keys})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	m, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.api.Report(r.Context(), r.PathValue("key"), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(report))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var months []core.MonthKey
	if r.URL.Query().Has("month") {
		m, err := s.monthParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		months = append(months, m)
	}
	fired, err := s.api.EvaluateAlerts(r.Context(), r.PathValue("key"), months...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]notificationResponse, 0, len(fired))
	for _, n := range fired {
		out = append(out, notificationResponse{Identifier: n.Identifier, Title: n.Title, Body: n.Body})
	}
	writeJSON(w, http.StatusOK, map[string][]notificationResponse{"fired": out})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, err := s.api.Backup(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "budget-"+key+".json"))
	_, _ = w.Write(data)
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func (s *Server) monthParam(r *http.Request) (core.MonthKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthOf(s.now()), nil
	}
	return core.ParseMonthKey(v)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, services.ErrEmptyLedgerKey):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrLedgerNotFound):
		status = http.StatusNotFound
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		blog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
