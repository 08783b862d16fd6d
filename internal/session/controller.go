// Package session owns the single active-session slot. All writes to the
// active session go through Controller; every other component receives
// cloned snapshots.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rpr-kontrol/kontrol/internal/audit"
	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/ids"
	"github.com/rpr-kontrol/kontrol/internal/report"
	"github.com/rpr-kontrol/kontrol/internal/veto"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrReportInProgress = errors.New("report generation already in progress")
	ErrReportsDisabled  = errors.New("report generation is not configured")
	ErrInvalidInput     = errors.New("invalid session input")
)

// Lifecycle event types published to the Notifier.
const (
	EventSessionInitialized = "session_initialized"
	EventVetoTriggered      = "veto_triggered"
	EventTurnRecorded       = "turn_recorded"
	EventBaselineLocked     = "baseline_locked"
	EventSessionLoaded      = "session_loaded"
	EventReportStarted      = "report_started"
	EventReportReady        = "report_ready"
	EventReportFailed       = "report_failed"
)

const seedHumanMessage = "Session initialized."

// Notifier receives lifecycle events. Publish must not block.
type Notifier interface {
	Publish(eventType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, any) {}

// Config wires a Controller's collaborators. Reports may be nil, in which
// case report generation fails with ErrReportsDisabled.
type Config struct {
	IDs           *ids.Generator
	Veto          veto.Checker
	Reports       report.Generator
	Notifier      Notifier
	Logger        *slog.Logger
	Now           func() time.Time
	ReportTimeout time.Duration
}

// Controller is the lifecycle state machine over the active session.
type Controller struct {
	ids           *ids.Generator
	veto          veto.Checker
	reports       report.Generator
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
	reportTimeout time.Duration

	mu          sync.Mutex
	active      *domain.Session
	performance *report.PerformanceReport
	auditReport *report.AuditDefenseReport
	search      audit.SearchResult
	generating  bool
	// epoch changes whenever the active slot is replaced, so a report
	// started before the swap is not stored against the new session.
	epoch uint64
}

// NewController returns a controller with no active session.
func NewController(cfg Config) *Controller {
	c := &Controller{
		ids:           cfg.IDs,
		veto:          cfg.Veto,
		reports:       cfg.Reports,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		now:           cfg.Now,
		reportTimeout: cfg.ReportTimeout,
		search:        audit.Inactive(),
	}
	if c.ids == nil {
		c.ids = ids.NewGenerator()
	}
	if c.veto == nil {
		c.veto = veto.NewFilter(nil)
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// InitInput is the operator-supplied part of a new session.
type InitInput struct {
	ClientName     string                `json:"clientName"`
	TaskNumber     int                   `json:"taskNumber"`
	ProjectName    string                `json:"projectName"`
	Phase          domain.Phase          `json:"phase"`
	Objective      string                `json:"objective"`
	Classification domain.Classification `json:"classification"`
	HumanOperator  string                `json:"humanOperator"`
}

// NewDraft validates in and builds an uninitialized session carrying the
// seed HUMAN turn. Validation failures wrap ErrInvalidInput.
func (c *Controller) NewDraft(in InitInput) (*domain.Session, error) {
	if err := ids.ValidateProjectCodeInput(in.ClientName, in.TaskNumber); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.ProjectName) == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if !in.Classification.Valid() {
		return nil, fmt.Errorf("%w: unknown classification %q", ErrInvalidInput, in.Classification)
	}
	operator := in.HumanOperator
	if operator == "" {
		operator = domain.HumanOperatorFounder
	}
	if err := domain.ValidateHumanOperator(operator); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	phase := in.Phase
	if phase == "" {
		phase = domain.PhasePlanning
	}
	phase, err := domain.ParsePhase(string(phase))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := c.now().UTC()
	return &domain.Session{
		SessionID:      c.ids.SessionID(),
		ProjectCode:    c.ids.ProjectCode(in.ClientName, in.TaskNumber),
		Timestamp:      now,
		Classification: in.Classification,
		AgentsInvolved: domain.TrackedAgents(),
		HumanOperator:  operator,
		Context: domain.Context{
			ProjectName: in.ProjectName,
			Phase:       phase,
			Objective:   in.Objective,
		},
		Conversation: []domain.ConversationTurn{{
			Turn:      1,
			Agent:     domain.AgentHuman,
			Content:   seedHumanMessage,
			Artifacts: []string{},
			Timestamp: now,
		}},
		ArtifactsProduced: []domain.Artifact{},
		DecisionsLog:      []domain.DecisionLog{},
		DualState:         domain.InitialDualState(),
	}, nil
}

// Initialize makes draft the active session. The first agent reply is
// synthesized and veto-checked; mock artifacts, decisions and metrics are
// seeded and the dual state reset. Pending report and search state is
// cleared. The returned session is a snapshot.
func (c *Controller) Initialize(draft *domain.Session) (*domain.Session, error) {
	if draft == nil || draft.SessionID == "" {
		return nil, fmt.Errorf("%w: draft session is required", ErrInvalidInput)
	}

	s := draft.Clone()
	now := c.now().UTC()
	content := initialMessage(s)
	turn := domain.ConversationTurn{
		Turn:      s.NextTurn(),
		Agent:     domain.AgentGemini,
		Content:   content,
		Artifacts: []string{},
		Timestamp: now,
	}

	decisions := audit.StampDecisions(audit.SeedDecisions(), s.SessionID)
	phrase, vetoed := c.veto.Match(content)
	if vetoed {
		turn.Vetoed = true
		decisions = append(decisions, vetoDecision(s.SessionID, phrase, turn.Turn, now))
		c.logger.Warn("Sentinel veto triggered", "session_id", s.SessionID, "turn", turn.Turn, "phrase", phrase)
	}

	s.Conversation = append(s.Conversation, turn)
	s.ArtifactsProduced = audit.SeedArtifacts()
	s.DecisionsLog = decisions
	s.PerformanceMetrics = domain.PerformanceMetrics{
		TaskCompletion:          0.93,
		GovernanceAdherence:     0.98,
		ResponseAccuracy:        0.90,
		CrossAgentCoordination:  0.95,
		FounderInterventionRate: 0.05,
	}
	s.DualState = domain.InitialDualState()

	c.mu.Lock()
	c.active = s
	c.clearPendingLocked()
	snapshot := s.Clone()
	c.mu.Unlock()

	c.logger.Info("Session initialized", "session_id", s.SessionID, "project_code", s.ProjectCode, "classification", s.Classification)
	c.notifier.Publish(EventSessionInitialized, map[string]any{"session_id": s.SessionID, "vetoed": vetoed})
	if vetoed {
		c.notifier.Publish(EventVetoTriggered, map[string]any{"session_id": s.SessionID, "turn": turn.Turn, "phrase": phrase})
	}
	return snapshot, nil
}

// RecordAgentTurn appends a new message to the active session. Messages from
// automated agents pass through the veto filter first; a veto marks the turn
// and logs a SENTINEL_PROTOCOL decision.
func (c *Controller) RecordAgentTurn(agent domain.AgentType, content string, artifacts []string) (domain.ConversationTurn, error) {
	if !agent.Valid() {
		return domain.ConversationTurn{}, fmt.Errorf("%w: unknown agent %q", ErrInvalidInput, agent)
	}
	if strings.TrimSpace(content) == "" {
		return domain.ConversationTurn{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if artifacts == nil {
		artifacts = []string{}
	}

	var phrase string
	var vetoed bool
	if agent != domain.AgentHuman {
		phrase, vetoed = c.veto.Match(content)
	}

	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return domain.ConversationTurn{}, ErrNoActiveSession
	}
	now := c.now().UTC()
	turn := domain.ConversationTurn{
		Turn:      c.active.NextTurn(),
		Agent:     agent,
		Content:   content,
		Artifacts: append([]string(nil), artifacts...),
		Timestamp: now,
		Vetoed:    vetoed,
	}
	c.active.Conversation = append(c.active.Conversation, turn)
	if vetoed {
		c.active.DecisionsLog = append(c.active.DecisionsLog, vetoDecision(c.active.SessionID, phrase, turn.Turn, now))
	}
	sessionID := c.active.SessionID
	c.mu.Unlock()

	c.notifier.Publish(EventTurnRecorded, map[string]any{"session_id": sessionID, "turn": turn.Turn, "vetoed": vetoed})
	if vetoed {
		c.logger.Warn("Sentinel veto triggered", "session_id", sessionID, "turn", turn.Turn, "phrase", phrase)
		c.notifier.Publish(EventVetoTriggered, map[string]any{"session_id": sessionID, "turn": turn.Turn, "phrase": phrase})
	}
	return turn, nil
}

// LockBaseline locks the active session's validation posture and stamps the
// audit checkpoint. A sessionID that is not the active session is a no-op.
// Locking an already locked session re-stamps the checkpoint.
func (c *Controller) LockBaseline(sessionID string) bool {
	c.mu.Lock()
	if c.active == nil || c.active.SessionID != sessionID {
		c.mu.Unlock()
		return false
	}
	now := c.now().UTC()
	c.active.DualState.ValidationPosture = domain.PostureLocked
	c.active.DualState.LastAuditCheckpoint = &now
	c.mu.Unlock()

	c.logger.Info("Baseline locked", "session_id", sessionID)
	c.notifier.Publish(EventBaselineLocked, map[string]any{"session_id": sessionID, "checkpoint": now})
	return true
}

// Load replaces the active session wholesale with a copy of past and clears
// pending report and search state.
func (c *Controller) Load(past *domain.Session) error {
	if past == nil || past.SessionID == "" {
		return fmt.Errorf("%w: session is required", ErrInvalidInput)
	}
	s := past.Clone()

	c.mu.Lock()
	c.active = s
	c.clearPendingLocked()
	c.mu.Unlock()

	c.logger.Info("Session loaded", "session_id", s.SessionID, "project_code", s.ProjectCode)
	c.notifier.Publish(EventSessionLoaded, map[string]any{"session_id": s.SessionID})
	return nil
}

// Snapshot returns a copy of the active session.
func (c *Controller) Snapshot() (*domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, false
	}
	return c.active.Clone(), true
}

func (c *Controller) clearPendingLocked() {
	c.epoch++
	c.performance = nil
	c.auditReport = nil
	c.search = audit.Inactive()
}

func initialMessage(s *domain.Session) string {
	names := make([]string, 0, len(domain.TrackedAgents()))
	for _, a := range domain.TrackedAgents() {
		names = append(names, a.DisplayName())
	}
	var b strings.Builder
	b.WriteString("RPR-KONTROL Document Controller initialized.\n\n")
	fmt.Fprintf(&b, "Session ID: %s\n", s.SessionID)
	fmt.Fprintf(&b, "Project Code: %s\n", s.ProjectCode)
	fmt.Fprintf(&b, "Classification: %s\n", s.Classification)
	fmt.Fprintf(&b, "Agents tracked: %s\n", strings.Join(names, ", "))
	b.WriteString("Memory: Active\nPerformance tracking: Enabled\nFlutter sync: Ready\n\n")
	b.WriteString("Awaiting project context and first directive.")
	return b.String()
}

func vetoDecision(sessionID, phrase string, turn int, now time.Time) domain.DecisionLog {
	return domain.DecisionLog{
		Decision:        fmt.Sprintf("Vetoed agent output in turn %d", turn),
		Rationale:       fmt.Sprintf("Prohibited phrase %q detected by the Sentinel filter", phrase),
		Authority:       domain.AuthoritySentinelProtocol,
		Timestamp:       now,
		SourceSessionID: sessionID,
	}
}
