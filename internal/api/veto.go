package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/session"
)

type vetoCheckRequest struct {
	Text string `json:"text"`
}

type vetoCheckResponse struct {
	Vetoed bool   `json:"vetoed"`
	Phrase string `json:"phrase,omitempty"`
}

// CheckVeto runs text through the content filter without touching any
// session.
func (h *Handler) CheckVeto(w http.ResponseWriter, r *http.Request) {
	var req vetoCheckRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		serviceError(w, err)
		return
	}
	phrase, vetoed := h.veto.Match(req.Text)
	JSON(w, http.StatusOK, vetoCheckResponse{Vetoed: vetoed, Phrase: phrase})
}

// GetArtifactMetadata returns the mirroring metadata document for one of
// the active session's artifacts.
func (h *Handler) GetArtifactMetadata(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Snapshot()
	if !ok {
		serviceError(w, session.ErrNoActiveSession)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil || index < 0 || index >= len(s.ArtifactsProduced) {
		serviceError(w, fmt.Errorf("%w: artifact index out of range", session.ErrInvalidInput))
		return
	}
	doc, err := domain.ArtifactMetadata(s, s.ArtifactsProduced[index], h.now())
	if err != nil {
		serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
