package audit

import (
	"strings"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// SearchResult distinguishes "no search" (Active false) from "no matches"
// (Active true, Sessions empty).
type SearchResult struct {
	Active   bool              `json:"active"`
	Term     string            `json:"term"`
	Sessions []*domain.Session `json:"sessions"`
}

// Inactive is the result of an empty search.
func Inactive() SearchResult {
	return SearchResult{Sessions: []*domain.Session{}}
}

// Search matches term case-insensitively against each session's project
// name, session id and conversation contents.
func Search(sessions []*domain.Session, term string) SearchResult {
	if strings.TrimSpace(term) == "" {
		return Inactive()
	}
	needle := strings.ToLower(term)
	res := SearchResult{Active: true, Term: term, Sessions: []*domain.Session{}}
	for _, s := range sessions {
		if s != nil && sessionMatches(s, needle) {
			res.Sessions = append(res.Sessions, s)
		}
	}
	return res
}

func sessionMatches(s *domain.Session, needle string) bool {
	if strings.Contains(strings.ToLower(s.Context.ProjectName), needle) ||
		strings.Contains(strings.ToLower(s.SessionID), needle) {
		return true
	}
	for _, turn := range s.Conversation {
		if strings.Contains(strings.ToLower(turn.Content), needle) {
			return true
		}
	}
	return false
}
