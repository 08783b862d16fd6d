package domain

import (
	"fmt"
	"strings"
)

// ProjectScope groups sessions by a substring convention in their project code.
type ProjectScope string

const (
	ScopeAll         ProjectScope = "ALL"
	ScopeMyAudit     ProjectScope = "MYAUDIT"
	ScopeRPRInternal ProjectScope = "RPR-INTERNAL"
)

// Substring returns the project-code fragment the scope matches on.
// ALL returns the empty string.
func (s ProjectScope) Substring() string {
	switch s {
	case ScopeMyAudit:
		return "MYAUDIT"
	case ScopeRPRInternal:
		return "RPR-"
	default:
		return ""
	}
}

// Matches evaluates the scope against a project code, first match wins.
func (s ProjectScope) Matches(projectCode string) bool {
	switch s {
	case ScopeAll, "":
		return true
	case ScopeMyAudit:
		return strings.Contains(projectCode, "MYAUDIT")
	case ScopeRPRInternal:
		return strings.Contains(projectCode, "RPR-")
	default:
		return false
	}
}

// ParseProjectScope parses a scope label. Empty input means ALL.
func ParseProjectScope(s string) (ProjectScope, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return ScopeAll, nil
	case "MYAUDIT":
		return ScopeMyAudit, nil
	case "RPR-INTERNAL", "RPR_INTERNAL":
		return ScopeRPRInternal, nil
	default:
		return "", fmt.Errorf("unknown project scope %q", s)
	}
}
