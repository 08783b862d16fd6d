package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/store"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	repo, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	defer repo.Close()

	ts := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	sessions := []*domain.Session{
		{
			SessionID:      "RPR-2024-010-SESSION",
			ProjectCode:    "MYAUDIT-2024-010-TASK",
			Timestamp:      ts,
			Classification: domain.ClassificationLevel2,
			Context:        domain.Context{ProjectName: "Payroll Review"},
			DecisionsLog: []domain.DecisionLog{
				{Decision: "Freeze payroll schema", Authority: domain.AuthorityFounder, Timestamp: ts},
			},
		},
		{
			SessionID:      "RPR-2024-011-SESSION",
			ProjectCode:    "RPR-2024-011-TASK",
			Timestamp:      ts,
			Classification: domain.ClassificationPublic,
			Context:        domain.Context{ProjectName: "Website Copy"},
			DecisionsLog: []domain.DecisionLog{
				{Decision: "Publish landing page", Authority: domain.AuthorityAgentAutonomous, Timestamp: ts},
			},
		},
	}
	for _, s := range sessions {
		if err := repo.UpsertSession(context.Background(), s); err != nil {
			t.Fatalf("UpsertSession error: %v", err)
		}
	}
	return path
}

func TestVetoCheck(t *testing.T) {
	out, err := runCmd(t, "veto", "check", "Results", "are", "GUARANTEED")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, `VETOED: matched "guaranteed"`) {
		t.Errorf("output = %q, want veto of guaranteed", out)
	}

	out, err = runCmd(t, "veto", "check", "Quarterly", "numbers")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if strings.TrimSpace(out) != "CLEAR" {
		t.Errorf("output = %q, want CLEAR", out)
	}
}

func TestVetoCheckCustomPhrases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	if err := os.WriteFile(path, []byte("phrases:\n  - risk free\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "veto", "check", "--phrases", path, "totally risk free")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, `"risk free"`) {
		t.Errorf("output = %q, want custom phrase match", out)
	}
}

func TestIDsProject(t *testing.T) {
	out, err := runCmd(t, "ids", "project", "acme", "7")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	want := "ACME-" + time.Now().Format("2006") + "-007-TASK"
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	if _, err := runCmd(t, "ids", "project", "acme", "0"); err == nil {
		t.Error("expected error for task number 0")
	}
}

func TestIDsSession(t *testing.T) {
	out, err := runCmd(t, "ids", "session")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	got := strings.TrimSpace(out)
	if !strings.HasPrefix(got, "RPR-") || !strings.HasSuffix(got, "-SESSION") {
		t.Errorf("session id = %q", got)
	}
}

func TestSessionsListAndSearch(t *testing.T) {
	db := seedArchive(t)

	out, err := runCmd(t, "sessions", "--db", db, "list", "--filter", "myaudit")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "RPR-2024-010-SESSION") || strings.Contains(out, "RPR-2024-011-SESSION") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	out, err = runCmd(t, "sessions", "--db", db, "search", "website")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "RPR-2024-011-SESSION") {
		t.Errorf("unexpected search output:\n%s", out)
	}

	out, err = runCmd(t, "sessions", "--db", db, "search", "nothing-like-this")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "No sessions match") {
		t.Errorf("unexpected search output:\n%s", out)
	}
}

func TestDecisions(t *testing.T) {
	db := seedArchive(t)

	out, err := runCmd(t, "decisions", "--db", db, "--min", "INTERNAL")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "Freeze payroll schema") {
		t.Errorf("missing level-2 decision:\n%s", out)
	}
	if strings.Contains(out, "Publish landing page") {
		t.Errorf("public decision should be below the floor:\n%s", out)
	}

	if _, err := runCmd(t, "decisions", "--db", db, "--scope", "NOPE"); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestReportRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(path, []byte("# Audit Defense\n\nAll turns reviewed.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "report", "render", "--style", "notty", path)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(out, "Audit Defense") || !strings.Contains(out, "All turns reviewed.") {
		t.Errorf("unexpected render output:\n%s", out)
	}
}
