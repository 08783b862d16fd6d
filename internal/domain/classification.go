package domain

import (
	"fmt"
	"strings"
)

// Classification is a sensitivity level. Labels are the wire values; ordering
// comes from classificationRanks, never from the label text.
type Classification string

const (
	ClassificationPublic   Classification = "PUBLIC"
	ClassificationInternal Classification = "INTERNAL"
	ClassificationLevel2   Classification = "TS-Λ2"
	ClassificationLevel3   Classification = "TS-Λ3 (CROWN SECRET)"

	// ClassificationAny is the filter sentinel that disables the floor.
	ClassificationAny Classification = "ANY"
)

var classificationRanks = map[Classification]int{
	ClassificationPublic:   0,
	ClassificationInternal: 1,
	ClassificationLevel2:   2,
	ClassificationLevel3:   3,
}

var classificationAliases = map[string]Classification{
	"PUBLIC":      ClassificationPublic,
	"INTERNAL":    ClassificationInternal,
	"LEVEL_2":     ClassificationLevel2,
	"TS_LAMBDA_2": ClassificationLevel2,
	"TS-Λ2":       ClassificationLevel2,
	"LEVEL_3":     ClassificationLevel3,
	"TS_LAMBDA_3": ClassificationLevel3,
	"TS-Λ3":       ClassificationLevel3,
	"ANY":         ClassificationAny,
}

// Classifications returns every concrete level in ascending rank order.
func Classifications() []Classification {
	return []Classification{
		ClassificationPublic,
		ClassificationInternal,
		ClassificationLevel2,
		ClassificationLevel3,
	}
}

// Rank returns the integer rank of c. ok is false for ANY and unknown labels.
func (c Classification) Rank() (rank int, ok bool) {
	rank, ok = classificationRanks[c]
	return rank, ok
}

// Valid reports whether c is one of the four concrete levels.
func (c Classification) Valid() bool {
	_, ok := classificationRanks[c]
	return ok
}

// AtLeast reports whether c satisfies the floor min. ANY admits everything.
func (c Classification) AtLeast(min Classification) bool {
	if min == ClassificationAny || min == "" {
		return true
	}
	floor, ok := min.Rank()
	if !ok {
		return false
	}
	rank, ok := c.Rank()
	if !ok {
		return false
	}
	return rank >= floor
}

// ParseClassification accepts a wire label or one of its aliases.
func ParseClassification(s string) (Classification, error) {
	trimmed := strings.TrimSpace(s)
	if c := Classification(trimmed); c.Valid() {
		return c, nil
	}
	if c, ok := classificationAliases[strings.ToUpper(trimmed)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown classification %q", s)
}
