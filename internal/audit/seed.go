package audit

import (
	"slices"
	"time"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

var seedEpoch = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

var seedDecisions = []domain.DecisionLog{
	{
		Decision:  "Adopt dual-state audit posture for all client sessions",
		Rationale: "Separating validation posture from defense readiness keeps audit evidence independent of operational status.",
		Authority: domain.AuthorityFounder,
		Timestamp: seedEpoch,
	},
	{
		Decision:  "Route every outgoing agent message through the Sentinel filter",
		Rationale: "Prohibited claim language must be caught before it is attached to a session record.",
		Authority: domain.AuthoritySentinelProtocol,
		Timestamp: seedEpoch.Add(45 * time.Minute),
	},
	{
		Decision:  "Version governance documents on every baseline lock",
		Rationale: "A locked baseline needs a matching artifact version for forensic replay.",
		Authority: domain.AuthorityAgentAutonomous,
		Timestamp: seedEpoch.Add(2 * time.Hour),
	},
}

var seedArtifacts = []domain.Artifact{
	{
		Type:     domain.ArtifactPRD,
		Title:    "RPR-KONTROL Product Requirements",
		FilePath: "docs/prd/rpr-kontrol.md",
		Version:  "1.0.0",
	},
	{
		Type:     domain.ArtifactGovernanceDoc,
		Title:    "Sentinel Protocol Charter",
		FilePath: "governance/sentinel-charter.md",
		Version:  "0.3.1",
	},
	{
		Type:     domain.ArtifactSchema,
		Title:    "Session Schema",
		FilePath: "schema/session.schema.json",
		Version:  "2.1.0",
	},
}

// SeedDecisions returns the working-copy decisions given to a session whose
// decisions have not been persisted yet. SourceSessionID is left empty.
func SeedDecisions() []domain.DecisionLog {
	return slices.Clone(seedDecisions)
}

// SeedArtifacts returns the artifacts attached to a freshly initialized session.
func SeedArtifacts() []domain.Artifact {
	return slices.Clone(seedArtifacts)
}

// StampDecisions copies decisions with SourceSessionID set to sessionID.
func StampDecisions(decisions []domain.DecisionLog, sessionID string) []domain.DecisionLog {
	out := make([]domain.DecisionLog, len(decisions))
	for i, d := range decisions {
		d.SourceSessionID = sessionID
		out[i] = d
	}
	return out
}
