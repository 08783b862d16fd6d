// Package veto implements the sentinel content filter applied to every agent
// message before it is attached to a session.
package veto

import (
	"strings"
	"sync/atomic"
)

// Checker is the read side of the filter consumed by the lifecycle controller.
type Checker interface {
	Match(text string) (phrase string, vetoed bool)
}

// Filter matches text against an ordered list of prohibited claim-phrases.
// Matching is a case-insensitive substring test with no word boundaries.
type Filter struct {
	phrases atomic.Pointer[[]string]
}

// DefaultPhrases returns the built-in prohibited phrase list.
func DefaultPhrases() []string {
	return []string{
		"guarantee",
		"guarantees",
		"guaranteed",
		"file documents",
		"filed documents",
		"filing documents",
		"tax-free",
		"tax savings",
		"will save you",
		"certainty",
		"undeniable",
		"absolute",
	}
}

// NewFilter returns a filter over phrases. A nil list uses DefaultPhrases.
func NewFilter(phrases []string) *Filter {
	f := &Filter{}
	if phrases == nil {
		phrases = DefaultPhrases()
	}
	f.Replace(phrases)
	return f
}

// Replace swaps the phrase list. Phrases are trimmed and lowercased; blanks
// are dropped. Order is preserved.
func (f *Filter) Replace(phrases []string) {
	normalized := normalize(phrases)
	f.phrases.Store(&normalized)
}

// Phrases returns a copy of the active list.
func (f *Filter) Phrases() []string {
	p := f.phrases.Load()
	if p == nil {
		return nil
	}
	return append([]string(nil), (*p)...)
}

// IsVetoed reports whether text contains any prohibited phrase.
func (f *Filter) IsVetoed(text string) bool {
	_, vetoed := f.Match(text)
	return vetoed
}

// Match returns the first phrase, in list order, found in text.
func (f *Filter) Match(text string) (string, bool) {
	p := f.phrases.Load()
	if p == nil {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, phrase := range *p {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func normalize(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		out = append(out, phrase)
	}
	return out
}
