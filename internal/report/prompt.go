package report

import (
	"fmt"
	"strings"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

func performancePrompt(sessionID, projectName string, classification domain.Classification) string {
	agents := make([]string, 0, len(domain.TrackedAgents()))
	for _, a := range domain.TrackedAgents() {
		agents = append(agents, string(a))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the RPR-KONTROL document controller.\n")
	fmt.Fprintf(&b, "Produce a performance report for session %s of project %q (classification %s).\n", sessionID, projectName, classification)
	fmt.Fprintf(&b, "Tracked agents: %s.\n", strings.Join(agents, ", "))
	b.WriteString("Respond with a single JSON object with two keys:\n")
	b.WriteString("  \"summary\": {agentPerformance: [{agent, taskCompletion, governanceAdherence, responseQuality, autonomyScore}], ")
	b.WriteString("workflowEfficiency: {totalInteractions, founderInterventions, founderInterventionRate, escalationsTriggered, crossAgentCoordination, bottlenecksIdentified}, ")
	b.WriteString("artifactsProduced: [{type, title, version}], recommendations, flutterSyncStatus: {sessionArchived, artifactsVersioned, readyForRetrieval}}\n")
	b.WriteString("  \"markdownReport\": the full report as GitHub-flavored markdown.\n")
	b.WriteString("Percentages are strings such as \"93%\". Never promise outcomes or certainty.\n")
	return b.String()
}

func auditPrompt(session *domain.Session) string {
	var b strings.Builder
	b.WriteString("You are the RPR-KONTROL Sentinel Protocol preparing an audit-defense brief.\n")
	fmt.Fprintf(&b, "Session: %s\nProject code: %s\nProject: %s\nPhase: %s\nClassification: %s\n",
		session.SessionID, session.ProjectCode, session.Context.ProjectName, session.Context.Phase, session.Classification)
	fmt.Fprintf(&b, "Validation posture: %s\nDefense readiness: %s\n",
		session.DualState.ValidationPosture, session.DualState.DefenseReadiness)
	if cp := session.DualState.LastAuditCheckpoint; cp != nil {
		fmt.Fprintf(&b, "Last audit checkpoint: %s\n", cp.UTC().Format("2006-01-02T15:04:05Z"))
	}

	b.WriteString("\nDecisions:\n")
	for _, d := range session.DecisionsLog {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", d.Authority, d.Decision, d.Rationale)
	}
	b.WriteString("\nArtifacts:\n")
	for _, a := range session.ArtifactsProduced {
		fmt.Fprintf(&b, "- %s %q v%s\n", a.Type, a.Title, a.Version)
	}
	b.WriteString("\nConversation:\n")
	for _, t := range session.Conversation {
		veto := ""
		if t.Vetoed {
			veto = " (VETOED)"
		}
		fmt.Fprintf(&b, "%d. %s%s: %s\n", t.Turn, t.Agent, veto, t.Content)
	}
	b.WriteString("\nWrite the brief as GitHub-flavored markdown with sections for chain of custody, decision authority, vetoes and residual risk. ")
	b.WriteString("State facts from the record only; do not guarantee any outcome.\n")
	return b.String()
}
