// Package api provides HTTP handlers for the RPR-KONTROL API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rpr-kontrol/kontrol/internal/events"
	"github.com/rpr-kontrol/kontrol/internal/registry"
	"github.com/rpr-kontrol/kontrol/internal/session"
	"github.com/rpr-kontrol/kontrol/internal/store"
	"github.com/rpr-kontrol/kontrol/internal/veto"
)

// maxRequestBodySize bounds JSON request bodies (1MB).
const maxRequestBodySize = 1 << 20

// Deps are the collaborators shared by every handler.
type Deps struct {
	Repo          store.Repository
	Sessions      *session.Controller
	Registry      *registry.Accessor
	Veto          veto.Checker
	Hub           *events.Hub
	ReportBackend string
	FrontendURL   string
	Now           func() time.Time
}

// Handler serves the JSON API.
type Handler struct {
	repo          store.Repository
	sessions      *session.Controller
	registry      *registry.Accessor
	veto          veto.Checker
	hub           *events.Hub
	reportBackend string
	frontendURL   string
	now           func() time.Time
}

// NewHandler creates a Handler from deps.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		repo:          d.Repo,
		sessions:      d.Sessions,
		registry:      d.Registry,
		veto:          d.Veto,
		hub:           d.Hub,
		reportBackend: d.ReportBackend,
		frontendURL:   d.FrontendURL,
		now:           d.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// RegisterRoutes registers every API route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", h.InitSession)
			r.Get("/", h.GetSession)
			r.Post("/lock", h.LockBaseline)
			r.Post("/load", h.LoadSession)
			r.Post("/turns", h.RecordTurn)
			r.Post("/archive", h.ArchiveSession)
		})

		r.Get("/registry", h.GetRegistry)
		r.Post("/registry/refresh", h.RefreshRegistry)
		r.Get("/overview", h.GetOverview)
		r.Get("/agents/performance", h.GetAgentPerformance)

		r.Get("/search", h.Search)
		r.Delete("/search", h.ClearSearch)

		r.Post("/reports/performance", h.GeneratePerformanceReport)
		r.Post("/reports/audit", h.GenerateAuditReport)
		r.Get("/reports/current", h.GetCurrentReport)
		r.Delete("/reports/current", h.CloseReport)

		r.Post("/veto/check", h.CheckVeto)
		r.Get("/artifacts/metadata", h.GetArtifactMetadata)
	})

	if h.hub != nil {
		r.Handle("/ws/events", h.hub.Handler(h.allowedOrigin()))
	}
}

// allowedOrigin returns the websocket origin pattern for the frontend.
// Patterns match hosts, so a full URL is reduced to its host.
func (h *Handler) allowedOrigin() string {
	if h.frontendURL == "" {
		return "*"
	}
	if u, err := url.Parse(h.frontendURL); err == nil && u.Host != "" {
		return u.Host
	}
	return h.frontendURL
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// serviceError maps domain errors to HTTP responses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoActiveSession):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrReportInProgress):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrReportsDisabled):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body is allowed
// when optional is true.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed request body: %v", session.ErrInvalidInput, err)
	}
	return nil
}
