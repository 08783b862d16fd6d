// Package audit derives read-side views over sessions: the aggregate of
// archived and active sessions, classification-scoped decision and artifact
// listings, registry search and per-agent performance.
package audit

import (
	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// Aggregate returns archived sessions followed by a working copy of active,
// if any. The working copy's decision log is seed stamped with the active
// session id, followed by the active session's own sentinel decisions so
// vetoes raised in this session stay visible. Inputs are never mutated.
func Aggregate(archived []*domain.Session, active *domain.Session, seed []domain.DecisionLog) []*domain.Session {
	out := make([]*domain.Session, 0, len(archived)+1)
	out = append(out, archived...)
	if active == nil {
		return out
	}

	working := active.Clone()
	decisions := StampDecisions(seed, active.SessionID)
	for _, d := range active.DecisionsLog {
		if d.Authority == domain.AuthoritySentinelProtocol && !containsDecision(decisions, d) {
			d.SourceSessionID = active.SessionID
			decisions = append(decisions, d)
		}
	}
	working.DecisionsLog = decisions
	return append(out, working)
}

func containsDecision(decisions []domain.DecisionLog, d domain.DecisionLog) bool {
	for _, have := range decisions {
		if have.Decision == d.Decision && have.Timestamp.Equal(d.Timestamp) && have.Authority == d.Authority {
			return true
		}
	}
	return false
}
