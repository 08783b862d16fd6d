//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/ids"
	"github.com/rpr-kontrol/kontrol/internal/registry"
	"github.com/rpr-kontrol/kontrol/internal/report"
	"github.com/rpr-kontrol/kontrol/internal/session"
	"github.com/rpr-kontrol/kontrol/internal/store"
	"github.com/rpr-kontrol/kontrol/internal/veto"
)

var fixedNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu       sync.Mutex
	sessions []*domain.Session
	events   []domain.GovernanceEvent
	pingErr  error
	listErr  error
}

func (f *fakeRepo) ListSessions(_ context.Context, projectFilter string) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	filter := strings.ToUpper(projectFilter)
	out := []*domain.Session{}
	for _, s := range f.sessions {
		if filter == "" || filter == store.FilterAll || strings.Contains(s.ProjectCode, filter) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (f *fakeRepo) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionID == sessionID {
			return s.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpsertSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sessions {
		if s.SessionID == session.SessionID {
			f.sessions[i] = session.Clone()
			return nil
		}
	}
	f.sessions = append(f.sessions, session.Clone())
	return nil
}

func (f *fakeRepo) AppendGovernanceEvent(_ context.Context, event domain.GovernanceEvent) (domain.GovernanceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeRepo) ListGovernanceEvents(context.Context, string) ([]domain.GovernanceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GovernanceEvent(nil), f.events...), nil
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error               { return nil }

type stubGenerator struct {
	markdown string
	err      error
}

func (g *stubGenerator) GeneratePerformanceReport(_ context.Context, sessionID, projectName string, _ domain.Classification) (*report.PerformanceReport, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &report.PerformanceReport{MarkdownReport: "# Performance " + sessionID + " " + projectName}, nil
}

func (g *stubGenerator) GenerateAuditDefenseReport(_ context.Context, s *domain.Session) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.markdown + " " + s.SessionID, nil
}

type testEnv struct {
	repo     *fakeRepo
	sessions *session.Controller
	registry *registry.Accessor
	router   http.Handler
}

func newTestEnv(t *testing.T, repo *fakeRepo, gen report.Generator) *testEnv {
	t.Helper()
	if repo == nil {
		repo = &fakeRepo{}
	}
	filter := veto.NewFilter(nil)
	ctrl := session.NewController(session.Config{
		IDs:     ids.NewGeneratorWith(func() time.Time { return fixedNow }, func(int) int { return 41 }),
		Veto:    filter,
		Reports: gen,
		Now:     func() time.Time { return fixedNow },
	})
	acc := registry.NewAccessor(repo)
	t.Cleanup(acc.Close)
	acc.SetFilter("")

	backend := "none"
	if gen != nil {
		backend = "genai"
	}
	h := NewHandler(Deps{
		Repo:          repo,
		Sessions:      ctrl,
		Registry:      acc,
		Veto:          filter,
		ReportBackend: backend,
		Now:           func() time.Time { return fixedNow },
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &testEnv{repo: repo, sessions: ctrl, registry: acc, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.registry.State().Status == registry.StatusReady
	}, 2*time.Second, 5*time.Millisecond)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func validInit() session.InitInput {
	return session.InitInput{
		ClientName:     "myaudit",
		TaskNumber:     7,
		ProjectName:    "Ledger Review",
		Objective:      "Reconcile Q2",
		Classification: domain.ClassificationInternal,
	}
}

func archivedSession(id, projectCode string, level domain.Classification, decision string) *domain.Session {
	return &domain.Session{
		SessionID:      id,
		ProjectCode:    projectCode,
		Timestamp:      fixedNow.Add(-time.Hour),
		Classification: level,
		Context:        domain.Context{ProjectName: "Archive " + id},
		Conversation:   []domain.ConversationTurn{{Turn: 1, Agent: domain.AgentHuman, Content: "kickoff"}},
		DecisionsLog: []domain.DecisionLog{{
			Decision:  decision,
			Rationale: "archived rationale",
			Authority: domain.AuthorityFounder,
			Timestamp: fixedNow.Add(-time.Hour),
		}},
		ArtifactsProduced: []domain.Artifact{{Type: domain.ArtifactCode, Title: "artifact-" + id, Version: "1.0"}},
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	repo := &fakeRepo{}
	env := newTestEnv(t, repo, nil)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	repo.pingErr = errors.New("disk gone")
	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, false, got["reports_enabled"])
	assert.Equal(t, "none", got["report_backend"])
	assert.Equal(t, domain.HumanOperatorFounder, got["operator"])
	assert.Len(t, got["classifications"], 4)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/session", validInit())
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[domain.Session](t, w)
	assert.Equal(t, "RPR-2025-042-SESSION", created.SessionID)
	assert.Equal(t, "MYAUDIT-2025-007-TASK", created.ProjectCode)
	assert.Equal(t, domain.PostureIncomplete, created.DualState.ValidationPosture)
	require.Len(t, created.Conversation, 2)

	w = env.do(t, http.MethodPost, "/api/session/turns", turnRequest{
		Agent:   domain.AgentCopilot,
		Content: "This approach is guaranteed to pass review.",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	turn := decode[domain.ConversationTurn](t, w)
	assert.True(t, turn.Vetoed)
	assert.Equal(t, 3, turn.Turn)

	w = env.do(t, http.MethodPost, "/api/session/lock", sessionIDRequest{SessionID: "RPR-2025-999-SESSION"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["locked"])

	w = env.do(t, http.MethodPost, "/api/session/lock", sessionIDRequest{SessionID: created.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	locked := decode[struct {
		Locked  bool            `json:"locked"`
		Session *domain.Session `json:"session"`
	}](t, w)
	assert.True(t, locked.Locked)
	assert.Equal(t, domain.PostureLocked, locked.Session.DualState.ValidationPosture)
	require.NotNil(t, locked.Session.DualState.LastAuditCheckpoint)
	assert.True(t, locked.Session.DualState.LastAuditCheckpoint.Equal(fixedNow))

	w = env.do(t, http.MethodPost, "/api/session/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	archived, err := env.repo.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, archived.Conversation, 3)
}

func TestInitSessionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		body any
	}{
		{"unknown classification", map[string]any{"clientName": "acme", "taskNumber": 1, "projectName": "p", "classification": "SECRET"}},
		{"missing client", map[string]any{"taskNumber": 1, "projectName": "p", "classification": "PUBLIC"}},
		{"zero task number", map[string]any{"clientName": "acme", "taskNumber": 0, "projectName": "p", "classification": "PUBLIC"}},
		{"unknown field", map[string]any{"clientName": "acme", "bogus": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/session", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	_, ok := env.sessions.Snapshot()
	assert.False(t, ok)
}

func TestInitSessionAcceptsClassificationAlias(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := map[string]any{"clientName": "acme", "taskNumber": 2, "projectName": "p", "classification": "LEVEL_3"}

	w := env.do(t, http.MethodPost, "/api/session", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, domain.ClassificationLevel3, decode[domain.Session](t, w).Classification)
}

func TestRecordTurnWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodPost, "/api/session/turns", turnRequest{Agent: domain.AgentJules, Content: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadSession(t *testing.T) {
	repo := &fakeRepo{sessions: []*domain.Session{
		archivedSession("RPR-2024-100-SESSION", "MYAUDIT-2024-001-TASK", domain.ClassificationPublic, "Ship it"),
	}}
	env := newTestEnv(t, repo, nil)

	w := env.do(t, http.MethodPost, "/api/session/load", sessionIDRequest{SessionID: "RPR-2024-404-SESSION"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/session/load", sessionIDRequest{SessionID: "RPR-2024-100-SESSION"})
	require.Equal(t, http.StatusOK, w.Code)
	active, ok := env.sessions.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "RPR-2024-100-SESSION", active.SessionID)
}

func TestRegistryFilterByScope(t *testing.T) {
	repo := &fakeRepo{sessions: []*domain.Session{
		archivedSession("RPR-2024-001-SESSION", "MYAUDIT-2024-001-TASK", domain.ClassificationPublic, "a"),
		archivedSession("RPR-2024-002-SESSION", "RPR-2024-002-TASK", domain.ClassificationInternal, "b"),
	}}
	env := newTestEnv(t, repo, nil)
	env.waitReady(t)

	w := env.do(t, http.MethodGet, "/api/registry?filter=MYAUDIT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env.waitReady(t)

	state := env.registry.State()
	assert.Equal(t, "MYAUDIT", state.Filter)
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "RPR-2024-001-SESSION", state.Sessions[0].SessionID)

	w = env.do(t, http.MethodGet, "/api/registry?filter=RPR-INTERNAL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env.waitReady(t)
	assert.Equal(t, "RPR-", env.registry.State().Filter)
}

func TestRegistryErrorState(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("db down")}
	env := newTestEnv(t, repo, nil)

	require.Eventually(t, func() bool {
		return env.registry.State().Status == registry.StatusError
	}, 2*time.Second, 5*time.Millisecond)

	w := env.do(t, http.MethodGet, "/api/registry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[registry.State](t, w)
	assert.Equal(t, registry.StatusError, state.Status)
	assert.Empty(t, state.Sessions)
	assert.NotContains(t, state.Error, "db down")
}

func TestOverviewFiltersDecisions(t *testing.T) {
	repo := &fakeRepo{sessions: []*domain.Session{
		archivedSession("RPR-2024-001-SESSION", "MYAUDIT-2024-001-TASK", domain.ClassificationPublic, "Adopt ledger v2"),
		archivedSession("RPR-2024-002-SESSION", "MYAUDIT-2024-002-TASK", domain.ClassificationLevel2, "Escalate ledger audit"),
		archivedSession("RPR-2024-003-SESSION", "RPR-2024-003-TASK", domain.ClassificationLevel3, "Internal ledger change"),
	}}
	env := newTestEnv(t, repo, nil)
	env.waitReady(t)

	var got overviewResponse
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/overview?scope=MYAUDIT&min=INTERNAL&keyword=ledger", nil)
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Status == registry.StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, got.Decisions, 1)
	assert.Equal(t, "Escalate ledger audit", got.Decisions[0].Decision)
	assert.Equal(t, "RPR-2024-002-SESSION", got.Decisions[0].SourceSessionID)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "artifact-RPR-2024-002-SESSION", got.Artifacts[0].Title)
}

func TestOverviewRejectsUnknownScope(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/overview?scope=EVERYTHING", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/overview?min=TOP", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	repo := &fakeRepo{sessions: []*domain.Session{
		archivedSession("RPR-2024-001-SESSION", "MYAUDIT-2024-001-TASK", domain.ClassificationPublic, "a"),
		archivedSession("RPR-2024-002-SESSION", "RPR-2024-002-TASK", domain.ClassificationPublic, "b"),
	}}
	env := newTestEnv(t, repo, nil)
	env.waitReady(t)

	w := env.do(t, http.MethodGet, "/api/search?q=002", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[struct {
		Active   bool              `json:"active"`
		Sessions []*domain.Session `json:"sessions"`
	}](t, w)
	assert.True(t, res.Active)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "RPR-2024-002-SESSION", res.Sessions[0].SessionID)

	w = env.do(t, http.MethodDelete, "/api/search", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/search", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["active"])
}

func TestAgentPerformance(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.waitReady(t)

	w := env.do(t, http.MethodGet, "/api/agents/performance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Status registry.Status  `json:"status"`
		Agents []map[string]any `json:"agents"`
	}](t, w)
	assert.Equal(t, registry.StatusReady, got.Status)
	assert.Len(t, got.Agents, len(domain.TrackedAgents()))
}

func TestReportsDisabled(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodPost, "/api/session", validInit())

	w := env.do(t, http.MethodPost, "/api/reports/performance", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodGet, "/api/reports/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditReportRendered(t *testing.T) {
	env := newTestEnv(t, nil, &stubGenerator{markdown: "# Audit Defense\n\nAll turns **reviewed**."})

	w := env.do(t, http.MethodPost, "/api/reports/audit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodPost, "/api/session", validInit())
	w = env.do(t, http.MethodPost, "/api/reports/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rep := decode[report.AuditDefenseReport](t, w)
	assert.Equal(t, "RPR-2025-042-SESSION", rep.SessionID)

	w = env.do(t, http.MethodGet, "/api/reports/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cur := decode[map[string]any](t, w)
	assert.Equal(t, session.ReportAuditDefense, cur["kind"])
	assert.Contains(t, cur["html"], "<strong>reviewed</strong>")

	w = env.do(t, http.MethodDelete, "/api/reports/current", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/reports/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditReportForArchivedSession(t *testing.T) {
	repo := &fakeRepo{sessions: []*domain.Session{
		archivedSession("RPR-2024-100-SESSION", "MYAUDIT-2024-001-TASK", domain.ClassificationPublic, "a"),
	}}
	env := newTestEnv(t, repo, &stubGenerator{markdown: "# Audit"})

	w := env.do(t, http.MethodPost, "/api/reports/audit", sessionIDRequest{SessionID: "RPR-2024-100-SESSION"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RPR-2024-100-SESSION", decode[report.AuditDefenseReport](t, w).SessionID)

	w = env.do(t, http.MethodPost, "/api/reports/audit", sessionIDRequest{SessionID: "RPR-2024-404-SESSION"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportBackendFailure(t *testing.T) {
	env := newTestEnv(t, nil, &stubGenerator{err: errors.New("quota exceeded")})
	env.do(t, http.MethodPost, "/api/session", validInit())

	w := env.do(t, http.MethodPost, "/api/reports/performance", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "quota")
	assert.False(t, env.sessions.IsGenerating())
}

func TestCheckVeto(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodPost, "/api/veto/check", vetoCheckRequest{Text: "This is TAX-FREE income"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[vetoCheckResponse](t, w)
	assert.True(t, got.Vetoed)
	assert.Equal(t, "tax-free", got.Phrase)

	w = env.do(t, http.MethodPost, "/api/veto/check", vetoCheckRequest{Text: "Quarterly summary attached."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[vetoCheckResponse](t, w).Vetoed)
}

func TestArtifactMetadata(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/artifacts/metadata?index=0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodPost, "/api/session", validInit())

	w = env.do(t, http.MethodGet, "/api/artifacts/metadata?index=99", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/artifacts/metadata?index=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[map[string]domain.ArtifactMetadataDoc](t, w)
	meta, ok := doc["artifact_metadata"]
	require.True(t, ok)
	assert.Equal(t, "RPR-2025-042-SESSION", meta.RelatedSession)
	assert.Equal(t, domain.ClassificationInternal, meta.Classification)
	assert.True(t, meta.GeneratedAt.Equal(fixedNow))
}
