package audit

import (
	"strings"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// Criteria selects decisions and artifacts from a set of sessions.
type Criteria struct {
	Scope             domain.ProjectScope
	MinClassification domain.Classification
	Keyword           string
}

// admits applies the scope test then the classification floor.
func (c Criteria) admits(s *domain.Session) bool {
	if !c.Scope.Matches(s.ProjectCode) {
		return false
	}
	return s.Classification.AtLeast(c.MinClassification)
}

// FilterDecisions returns, in session order, every decision of an admitted
// session whose text or rationale contains the keyword. Each returned
// decision carries the owning session's id regardless of what was stored.
func FilterDecisions(sessions []*domain.Session, c Criteria) []domain.DecisionLog {
	keyword := strings.ToLower(strings.TrimSpace(c.Keyword))
	out := []domain.DecisionLog{}
	for _, s := range sessions {
		if s == nil || !c.admits(s) {
			continue
		}
		for _, d := range s.DecisionsLog {
			if keyword != "" &&
				!strings.Contains(strings.ToLower(d.Decision), keyword) &&
				!strings.Contains(strings.ToLower(d.Rationale), keyword) {
				continue
			}
			d.SourceSessionID = s.SessionID
			out = append(out, d)
		}
	}
	return out
}

// FilterArtifacts flattens the artifacts of every admitted session.
// Duplicates across sessions are kept. The keyword is not applied.
func FilterArtifacts(sessions []*domain.Session, c Criteria) []domain.Artifact {
	out := []domain.Artifact{}
	for _, s := range sessions {
		if s == nil || !c.admits(s) {
			continue
		}
		out = append(out, s.ArtifactsProduced...)
	}
	return out
}
