package audit

import (
	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// AgentStats summarizes one automated agent across a set of sessions.
// Ratios are averaged over the sessions the agent took part in.
type AgentStats struct {
	Agent               domain.AgentType `json:"agent"`
	DisplayName         string           `json:"displayName"`
	Sessions            int              `json:"sessions"`
	Turns               int              `json:"turns"`
	VetoedTurns         int              `json:"vetoedTurns"`
	InterventionCount   int              `json:"interventionCount"`
	TaskCompletion      float64          `json:"taskCompletion"`
	GovernanceAdherence float64          `json:"governanceAdherence"`
	ResponseAccuracy    float64          `json:"responseAccuracy"`
}

// AgentPerformance returns stats for every tracked agent in roster order.
// HUMAN is never reported. An intervention is a HUMAN turn that directly
// follows one of the agent's turns.
func AgentPerformance(sessions []*domain.Session) []AgentStats {
	tracked := domain.TrackedAgents()
	index := make(map[domain.AgentType]int, len(tracked))
	stats := make([]AgentStats, len(tracked))
	for i, a := range tracked {
		index[a] = i
		stats[i] = AgentStats{Agent: a, DisplayName: a.DisplayName()}
	}

	for _, s := range sessions {
		if s == nil {
			continue
		}
		seen := make(map[domain.AgentType]bool)
		mark := func(a domain.AgentType) {
			i, ok := index[a]
			if !ok || seen[a] {
				return
			}
			seen[a] = true
			st := &stats[i]
			st.Sessions++
			st.TaskCompletion += s.PerformanceMetrics.TaskCompletion
			st.GovernanceAdherence += s.PerformanceMetrics.GovernanceAdherence
			st.ResponseAccuracy += s.PerformanceMetrics.ResponseAccuracy
		}
		for _, a := range s.AgentsInvolved {
			mark(a)
		}

		var prev domain.AgentType
		for _, turn := range s.Conversation {
			if i, ok := index[turn.Agent]; ok {
				mark(turn.Agent)
				stats[i].Turns++
				if turn.Vetoed {
					stats[i].VetoedTurns++
				}
			}
			if turn.Agent == domain.AgentHuman {
				if i, ok := index[prev]; ok {
					stats[i].InterventionCount++
				}
			}
			prev = turn.Agent
		}
	}

	for i := range stats {
		if n := float64(stats[i].Sessions); n > 0 {
			stats[i].TaskCompletion /= n
			stats[i].GovernanceAdherence /= n
			stats[i].ResponseAccuracy /= n
		}
	}
	return stats
}
