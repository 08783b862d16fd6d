package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/report"
	"github.com/rpr-kontrol/kontrol/internal/session"
	"github.com/rpr-kontrol/kontrol/internal/store"
)

type currentReportResponse struct {
	session.CurrentReport
	HTML string `json:"html"`
}

// reportError maps report failures. Anything not produced by the controller
// itself came from the generation backend.
func reportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrReportInProgress),
		errors.Is(err, session.ErrReportsDisabled),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, store.ErrNotFound):
		serviceError(w, err)
	default:
		Error(w, http.StatusBadGateway, "report generation failed")
	}
}

// GeneratePerformanceReport generates a performance report for the active
// session. The call blocks until the backend answers or times out.
func (h *Handler) GeneratePerformanceReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sessions.GeneratePerformanceReport(r.Context())
	if err != nil {
		reportError(w, err)
		return
	}
	JSON(w, http.StatusOK, rep)
}

// GenerateAuditReport generates an audit-defense report for the active
// session or, when sessionId names another session, for that archived one.
func (h *Handler) GenerateAuditReport(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		serviceError(w, err)
		return
	}

	var target *domain.Session
	if req.SessionID != "" {
		if active, ok := h.sessions.Snapshot(); !ok || active.SessionID != req.SessionID {
			past, err := h.repo.GetSession(r.Context(), req.SessionID)
			if err != nil {
				reportError(w, err)
				return
			}
			target = past
		}
	}

	rep, err := h.sessions.GenerateAuditReport(r.Context(), target)
	if err != nil {
		reportError(w, err)
		return
	}
	JSON(w, http.StatusOK, rep)
}

// GetCurrentReport returns the pending report with its markdown rendered.
func (h *Handler) GetCurrentReport(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.sessions.Report()
	if !ok {
		Error(w, http.StatusNotFound, "no report available")
		return
	}
	html, err := report.RenderHTML(cur.Markdown())
	if err != nil {
		slog.Error("Failed to render report", "kind", cur.Kind, "error", fmt.Errorf("render report: %w", err))
		Error(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	JSON(w, http.StatusOK, currentReportResponse{CurrentReport: cur, HTML: html})
}

// CloseReport discards the pending report.
func (h *Handler) CloseReport(w http.ResponseWriter, r *http.Request) {
	h.sessions.CloseReport()
	w.WriteHeader(http.StatusNoContent)
}
