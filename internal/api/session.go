package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/identity"
	"github.com/rpr-kontrol/kontrol/internal/session"
	"github.com/rpr-kontrol/kontrol/internal/store"
)

type sessionIDRequest struct {
	SessionID string `json:"sessionId"`
}

type turnRequest struct {
	Agent     domain.AgentType `json:"agent"`
	Content   string           `json:"content"`
	Artifacts []string         `json:"artifacts"`
}

// InitSession drafts and initializes a new active session.
func (h *Handler) InitSession(w http.ResponseWriter, r *http.Request) {
	var in session.InitInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		serviceError(w, err)
		return
	}
	if in.HumanOperator == "" {
		in.HumanOperator = identity.OperatorFromContext(r.Context())
	}
	if in.Classification != "" {
		c, err := domain.ParseClassification(string(in.Classification))
		if err != nil {
			serviceError(w, fmt.Errorf("%w: %w", session.ErrInvalidInput, err))
			return
		}
		in.Classification = c
	}

	draft, err := h.sessions.NewDraft(in)
	if err != nil {
		serviceError(w, err)
		return
	}
	s, err := h.sessions.Initialize(draft)
	if err != nil {
		serviceError(w, err)
		return
	}
	JSON(w, http.StatusCreated, s)
}

// GetSession returns the active session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Snapshot()
	if !ok {
		serviceError(w, session.ErrNoActiveSession)
		return
	}
	JSON(w, http.StatusOK, s)
}

// LockBaseline locks the active session if the id matches. A mismatch is a
// no-op reported as locked=false.
func (h *Handler) LockBaseline(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		serviceError(w, err)
		return
	}
	locked := h.sessions.LockBaseline(req.SessionID)
	s, _ := h.sessions.Snapshot()
	JSON(w, http.StatusOK, map[string]any{"locked": locked, "session": s})
}

// LoadSession replaces the active session with an archived one.
func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		serviceError(w, err)
		return
	}
	if req.SessionID == "" {
		serviceError(w, fmt.Errorf("%w: sessionId is required", session.ErrInvalidInput))
		return
	}
	past, err := h.repo.GetSession(r.Context(), req.SessionID)
	if err != nil {
		serviceError(w, err)
		return
	}
	if err := h.sessions.Load(past); err != nil {
		serviceError(w, err)
		return
	}
	s, _ := h.sessions.Snapshot()
	JSON(w, http.StatusOK, s)
}

// RecordTurn appends a message to the active session's conversation.
func (h *Handler) RecordTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		serviceError(w, err)
		return
	}
	turn, err := h.sessions.RecordAgentTurn(req.Agent, req.Content, req.Artifacts)
	if err != nil {
		serviceError(w, err)
		return
	}
	JSON(w, http.StatusCreated, turn)
}

// ArchiveSession persists the active session to the archive and refreshes
// the registry.
func (h *Handler) ArchiveSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Snapshot()
	if !ok {
		serviceError(w, session.ErrNoActiveSession)
		return
	}
	if err := h.repo.UpsertSession(r.Context(), s); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			serviceError(w, err)
			return
		}
		slog.Error("Failed to archive session", "session_id", s.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to archive session")
		return
	}
	token := h.registry.Refresh()
	slog.Info("Session archived", "session_id", s.SessionID, "project_code", s.ProjectCode)
	JSON(w, http.StatusOK, map[string]any{"archived": s.SessionID, "registry_token": token})
}
