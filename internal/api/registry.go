package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rpr-kontrol/kontrol/internal/audit"
	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/registry"
	"github.com/rpr-kontrol/kontrol/internal/session"
)

type overviewResponse struct {
	Status    registry.Status      `json:"status"`
	Filter    string               `json:"filter"`
	Error     string               `json:"error,omitempty"`
	Scope     domain.ProjectScope  `json:"scope"`
	Decisions []domain.DecisionLog `json:"decisions"`
	Artifacts []domain.Artifact    `json:"artifacts"`
}

// registryFilter turns a scope label into its project-code substring. Any
// other value is used as a raw substring.
func registryFilter(raw string) string {
	raw = strings.TrimSpace(raw)
	scope, err := domain.ParseProjectScope(raw)
	if err != nil {
		return raw
	}
	return scope.Substring()
}

// applyFilter starts a new fetch only when the filter actually changes, so
// polling the same filter does not keep the registry in the loading state.
func (h *Handler) applyFilter(filter string) registry.State {
	state := h.registry.State()
	if !strings.EqualFold(state.Filter, normalizedFilter(filter)) {
		h.registry.SetFilter(filter)
		state = h.registry.State()
	}
	return state
}

func normalizedFilter(filter string) string {
	if filter == "" {
		return "ALL"
	}
	return strings.ToUpper(filter)
}

// GetRegistry returns the registry state for the requested filter.
func (h *Handler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("filter") {
		JSON(w, http.StatusOK, h.registry.State())
		return
	}
	JSON(w, http.StatusOK, h.applyFilter(registryFilter(r.URL.Query().Get("filter"))))
}

// RefreshRegistry re-fetches the current filter.
func (h *Handler) RefreshRegistry(w http.ResponseWriter, r *http.Request) {
	h.registry.Refresh()
	JSON(w, http.StatusAccepted, h.registry.State())
}

// GetOverview returns the filtered decision and artifact lists across the
// archive and the active session.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope, err := domain.ParseProjectScope(q.Get("scope"))
	if err != nil {
		serviceError(w, fmt.Errorf("%w: %w", session.ErrInvalidInput, err))
		return
	}
	minLevel := domain.ClassificationAny
	if raw := q.Get("min"); raw != "" {
		minLevel, err = domain.ParseClassification(raw)
		if err != nil {
			serviceError(w, fmt.Errorf("%w: %w", session.ErrInvalidInput, err))
			return
		}
	}

	state := h.applyFilter(scope.Substring())
	resp := overviewResponse{
		Status:    state.Status,
		Filter:    state.Filter,
		Error:     state.Error,
		Scope:     scope,
		Decisions: []domain.DecisionLog{},
		Artifacts: []domain.Artifact{},
	}
	if state.Status == registry.StatusReady {
		active, _ := h.sessions.Snapshot()
		working := audit.Aggregate(state.Sessions, active, audit.SeedDecisions())
		criteria := audit.Criteria{Scope: scope, MinClassification: minLevel, Keyword: q.Get("keyword")}
		resp.Decisions = audit.FilterDecisions(working, criteria)
		resp.Artifacts = audit.FilterArtifacts(working, criteria)
	}
	JSON(w, http.StatusOK, resp)
}

// GetAgentPerformance returns per-agent stats over the loaded registry.
func (h *Handler) GetAgentPerformance(w http.ResponseWriter, r *http.Request) {
	state := h.registry.State()
	JSON(w, http.StatusOK, map[string]any{
		"status": state.Status,
		"agents": audit.AgentPerformance(state.Sessions),
	})
}

// Search runs a full-text search over the loaded registry. Without q it
// returns the last search result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("q") {
		JSON(w, http.StatusOK, h.sessions.SearchState())
		return
	}
	state := h.registry.State()
	JSON(w, http.StatusOK, h.sessions.Search(r.URL.Query().Get("q"), state.Sessions))
}

// ClearSearch resets the search state.
func (h *Handler) ClearSearch(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSearch()
	w.WriteHeader(http.StatusNoContent)
}
