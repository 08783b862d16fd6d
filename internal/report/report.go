// Package report produces narrative performance and audit-defense reports
// through a pluggable text-generation backend.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("report backend returned an empty response")

// auditAuthority signs every audit-defense report.
const auditAuthority = "RPR-KONTROL Sentinel Protocol"

// Generator is a report backend. Implementations are slow and may fail;
// callers own timeouts and never retry automatically.
type Generator interface {
	GeneratePerformanceReport(ctx context.Context, sessionID, projectName string, classification domain.Classification) (*PerformanceReport, error)
	GenerateAuditDefenseReport(ctx context.Context, session *domain.Session) (string, error)
}

// AgentScore is one row of the agent performance table. Values are
// preformatted percentages as the backend returns them.
type AgentScore struct {
	Agent               domain.AgentType `json:"agent"`
	TaskCompletion      string           `json:"taskCompletion"`
	GovernanceAdherence string           `json:"governanceAdherence"`
	ResponseQuality     string           `json:"responseQuality"`
	AutonomyScore       string           `json:"autonomyScore"`
}

// WorkflowEfficiency summarizes interaction counts for a session.
type WorkflowEfficiency struct {
	TotalInteractions       int    `json:"totalInteractions"`
	FounderInterventions    int    `json:"founderInterventions"`
	FounderInterventionRate string `json:"founderInterventionRate"`
	EscalationsTriggered    int    `json:"escalationsTriggered"`
	CrossAgentCoordination  string `json:"crossAgentCoordination"`
	BottlenecksIdentified   string `json:"bottlenecksIdentified"`
}

// SyncStatus reports whether the session is archived for mobile retrieval.
type SyncStatus struct {
	SessionArchived    bool `json:"sessionArchived"`
	ArtifactsVersioned bool `json:"artifactsVersioned"`
	ReadyForRetrieval  bool `json:"readyForRetrieval"`
}

// Summary is the structured half of a performance report.
type Summary struct {
	AgentPerformance   []AgentScore       `json:"agentPerformance"`
	WorkflowEfficiency WorkflowEfficiency `json:"workflowEfficiency"`
	ArtifactsProduced  []domain.Artifact  `json:"artifactsProduced"`
	Recommendations    string             `json:"recommendations"`
	FlutterSyncStatus  SyncStatus         `json:"flutterSyncStatus"`
}

// PerformanceReport is the result of GeneratePerformanceReport.
type PerformanceReport struct {
	Summary        Summary `json:"summary"`
	MarkdownReport string  `json:"markdownReport"`
}

// AuditDefenseReport wraps audit-defense markdown with its provenance.
type AuditDefenseReport struct {
	SessionID      string    `json:"sessionId"`
	MarkdownReport string    `json:"markdownReport"`
	Timestamp      time.Time `json:"timestamp"`
	Authority      string    `json:"authority"`
}

// NewAuditDefenseReport stamps markdown generated for sessionID.
func NewAuditDefenseReport(sessionID, markdown string, now time.Time) *AuditDefenseReport {
	return &AuditDefenseReport{
		SessionID:      sessionID,
		MarkdownReport: markdown,
		Timestamp:      now.UTC(),
		Authority:      auditAuthority,
	}
}
