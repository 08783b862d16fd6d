// Package domain contains the governance record types exchanged with the
// session archive and the dashboard.
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AgentType is a participant kind in a session.
type AgentType string

const (
	AgentGemini     AgentType = "gemini"
	AgentPerplexity AgentType = "perplexity"
	AgentCopilot    AgentType = "copilot"
	AgentJules      AgentType = "jules"
	AgentFirebase   AgentType = "firebase"
	AgentHuman      AgentType = "human"
)

// AgentTypes returns every participant kind, HUMAN last.
func AgentTypes() []AgentType {
	return []AgentType{AgentGemini, AgentPerplexity, AgentCopilot, AgentJules, AgentFirebase, AgentHuman}
}

// TrackedAgents returns the automated agents, excluding HUMAN.
func TrackedAgents() []AgentType {
	return []AgentType{AgentGemini, AgentPerplexity, AgentCopilot, AgentJules, AgentFirebase}
}

// Valid reports whether a is a known participant kind.
func (a AgentType) Valid() bool {
	for _, known := range AgentTypes() {
		if a == known {
			return true
		}
	}
	return false
}

// DisplayName capitalizes the agent label ("gemini" -> "Gemini").
func (a AgentType) DisplayName() string {
	if a == "" {
		return ""
	}
	return strings.ToUpper(string(a[:1])) + string(a[1:])
}

// Phase is the stage of the tracked project.
type Phase string

const (
	PhasePlanning       Phase = "planning"
	PhaseImplementation Phase = "implementation"
	PhaseTesting        Phase = "testing"
	PhaseDeployment     Phase = "deployment"
)

// ParsePhase accepts a phase label in any case.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PhasePlanning, PhaseImplementation, PhaseTesting, PhaseDeployment:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// ArtifactType classifies a produced artifact.
type ArtifactType string

const (
	ArtifactPRD           ArtifactType = "prd"
	ArtifactCode          ArtifactType = "code"
	ArtifactSpec          ArtifactType = "spec"
	ArtifactGovernanceDoc ArtifactType = "governance_doc"
	ArtifactDeployment    ArtifactType = "deployment"
	ArtifactNotebook      ArtifactType = "notebook"
	ArtifactSchema        ArtifactType = "schema"
)

// DecisionAuthority names who made a logged decision.
type DecisionAuthority string

const (
	AuthorityFounder          DecisionAuthority = "founder"
	AuthoritySentinelProtocol DecisionAuthority = "sentinel_protocol"
	AuthorityAgentAutonomous  DecisionAuthority = "agent_autonomous"
)

// ValidationPosture is the first half of the dual state.
type ValidationPosture string

const (
	PostureCompliant  ValidationPosture = "COMPLIANT"
	PostureIncomplete ValidationPosture = "INCOMPLETE"
	PostureLocked     ValidationPosture = "LOCKED"
)

// DefenseReadiness is the second half of the dual state.
type DefenseReadiness string

const (
	ReadinessReady     DefenseReadiness = "READY"
	ReadinessDormant   DefenseReadiness = "DORMANT"
	ReadinessCollapsed DefenseReadiness = "COLLAPSED"
)

// HumanOperatorFounder is the literal operator tag for the founder.
const HumanOperatorFounder = "founder"

const teamMemberPrefix = "team_member_"

// ValidateHumanOperator accepts "founder" or "team_member_<name>".
func ValidateHumanOperator(op string) error {
	if op == HumanOperatorFounder {
		return nil
	}
	if strings.HasPrefix(op, teamMemberPrefix) && len(op) > len(teamMemberPrefix) {
		return nil
	}
	return fmt.Errorf("human operator must be %q or %q<name>, got %q", HumanOperatorFounder, teamMemberPrefix, op)
}

// Context describes the project a session belongs to.
type Context struct {
	ProjectName string `json:"projectName" yaml:"projectName"`
	Phase       Phase  `json:"phase" yaml:"phase"`
	Objective   string `json:"objective" yaml:"objective"`
}

// ConversationTurn is one immutable entry of a session's conversation.
type ConversationTurn struct {
	Turn      int       `json:"turn" yaml:"turn"`
	Agent     AgentType `json:"agent" yaml:"agent"`
	Content   string    `json:"content" yaml:"content"`
	Artifacts []string  `json:"artifacts" yaml:"artifacts"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Vetoed    bool      `json:"vetoed,omitempty" yaml:"vetoed,omitempty"`
}

// PerformanceMetrics holds five ratios bounded to [0,1].
type PerformanceMetrics struct {
	TaskCompletion          float64 `json:"taskCompletion" yaml:"taskCompletion"`
	GovernanceAdherence     float64 `json:"governanceAdherence" yaml:"governanceAdherence"`
	ResponseAccuracy        float64 `json:"responseAccuracy" yaml:"responseAccuracy"`
	CrossAgentCoordination  float64 `json:"crossAgentCoordination" yaml:"crossAgentCoordination"`
	FounderInterventionRate float64 `json:"founderInterventionRate" yaml:"founderInterventionRate"`
}

// Validate checks every ratio is within [0,1].
func (m PerformanceMetrics) Validate() error {
	ratios := map[string]float64{
		"taskCompletion":          m.TaskCompletion,
		"governanceAdherence":     m.GovernanceAdherence,
		"responseAccuracy":        m.ResponseAccuracy,
		"crossAgentCoordination":  m.CrossAgentCoordination,
		"founderInterventionRate": m.FounderInterventionRate,
	}
	for name, v := range ratios {
		if v < 0 || v > 1 {
			return fmt.Errorf("metric %s out of range [0,1]: %v", name, v)
		}
	}
	return nil
}

// Artifact is an immutable produced item.
type Artifact struct {
	Type        ArtifactType `json:"type" yaml:"type"`
	Title       string       `json:"title" yaml:"title"`
	FilePath    string       `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	Version     string       `json:"version" yaml:"version"`
	SHA256      string       `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	URI         string       `json:"uri,omitempty" yaml:"uri,omitempty"`
	DriveFileID string       `json:"driveFileId,omitempty" yaml:"driveFileId,omitempty"`
	DrivePath   string       `json:"drivePath,omitempty" yaml:"drivePath,omitempty"`
}

// DecisionLog is one logged decision. SourceSessionID is a back-reference only.
type DecisionLog struct {
	Decision        string            `json:"decision" yaml:"decision"`
	Rationale       string            `json:"rationale" yaml:"rationale"`
	Authority       DecisionAuthority `json:"authority" yaml:"authority"`
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	SourceSessionID string            `json:"sourceSessionId" yaml:"sourceSessionId"`
}

// DualState summarizes a session's audit standing. Once ValidationPosture is
// LOCKED only re-initialization of the session resets it.
type DualState struct {
	ValidationPosture   ValidationPosture `json:"validation_posture" yaml:"validation_posture"`
	DefenseReadiness    DefenseReadiness  `json:"defense_readiness" yaml:"defense_readiness"`
	LastAuditCheckpoint *time.Time        `json:"last_audit_checkpoint,omitempty" yaml:"last_audit_checkpoint,omitempty"`
}

// InitialDualState is the state of a freshly initialized session.
func InitialDualState() DualState {
	return DualState{
		ValidationPosture: PostureIncomplete,
		DefenseReadiness:  ReadinessDormant,
	}
}

// Session is the aggregate root of a tracked collaboration.
type Session struct {
	SessionID          string             `json:"sessionId" yaml:"sessionId"`
	ProjectCode        string             `json:"projectCode" yaml:"projectCode"`
	Timestamp          time.Time          `json:"timestamp" yaml:"timestamp"`
	Classification     Classification     `json:"classification" yaml:"classification"`
	AgentsInvolved     []AgentType        `json:"agentsInvolved" yaml:"agentsInvolved"`
	HumanOperator      string             `json:"humanOperator" yaml:"humanOperator"`
	Context            Context            `json:"context" yaml:"context"`
	Conversation       []ConversationTurn `json:"conversation" yaml:"conversation"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics" yaml:"performanceMetrics"`
	ArtifactsProduced  []Artifact         `json:"artifactsProduced" yaml:"artifactsProduced"`
	DecisionsLog       []DecisionLog      `json:"decisionsLog" yaml:"decisionsLog"`
	DualState          DualState          `json:"dual_state" yaml:"dual_state"`
}

// Clone returns a deep copy so callers never alias another owner's slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.AgentsInvolved = slices.Clone(s.AgentsInvolved)
	c.Conversation = slices.Clone(s.Conversation)
	for i := range c.Conversation {
		c.Conversation[i].Artifacts = slices.Clone(c.Conversation[i].Artifacts)
	}
	c.ArtifactsProduced = slices.Clone(s.ArtifactsProduced)
	c.DecisionsLog = slices.Clone(s.DecisionsLog)
	if s.DualState.LastAuditCheckpoint != nil {
		ts := *s.DualState.LastAuditCheckpoint
		c.DualState.LastAuditCheckpoint = &ts
	}
	return &c
}

// NextTurn returns the number the next conversation turn should carry.
func (s *Session) NextTurn() int {
	if len(s.Conversation) == 0 {
		return 1
	}
	return s.Conversation[len(s.Conversation)-1].Turn + 1
}

// IsLocked reports whether the validation posture has been locked.
func (s *Session) IsLocked() bool {
	return s.DualState.ValidationPosture == PostureLocked
}
