package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rpr-kontrol/kontrol/internal/config"
	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/identity"
)

// Health reports whether the session archive is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "database unreachable"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetConfig returns the enumerations and feature flags the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	backend := h.reportBackend
	if backend == "" {
		backend = config.ReportBackendNone
	}
	JSON(w, http.StatusOK, map[string]any{
		"operator":        identity.OperatorFromContext(r.Context()),
		"reports_enabled": backend != config.ReportBackendNone,
		"report_backend":  backend,
		"classifications": domain.Classifications(),
		"scopes":          []domain.ProjectScope{domain.ScopeAll, domain.ScopeMyAudit, domain.ScopeRPRInternal},
		"agents":          domain.TrackedAgents(),
		"phases":          []domain.Phase{domain.PhasePlanning, domain.PhaseImplementation, domain.PhaseTesting, domain.PhaseDeployment},
	})
}
