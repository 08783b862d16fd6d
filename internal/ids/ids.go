// Package ids generates session identifiers and project codes.
package ids

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

var (
	errEmptyClient       = errors.New("client name is required")
	errInvalidTaskNumber = errors.New("task number must be a positive integer")
)

// Generator produces identifiers from the current year and a random source.
// Session ids are not guaranteed unique: 999 values per year can collide.
type Generator struct {
	now  func() time.Time
	intN func(n int) int
}

// NewGenerator returns a generator using the wall clock and math/rand/v2.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, intN: rand.IntN}
}

// NewGeneratorWith returns a generator with an injected clock and random source.
// intN must return a value in [0, n).
func NewGeneratorWith(now func() time.Time, intN func(n int) int) *Generator {
	return &Generator{now: now, intN: intN}
}

// SessionID returns RPR-<yyyy>-<001..999>-SESSION.
func (g *Generator) SessionID() string {
	return fmt.Sprintf("RPR-%04d-%03d-SESSION", g.now().Year(), g.intN(999)+1)
}

// ProjectCode returns <CLIENT>-<yyyy>-<task %03d>-TASK. Callers validate input
// with ValidateProjectCodeInput first.
func (g *Generator) ProjectCode(clientName string, taskNumber int) string {
	return fmt.Sprintf("%s-%04d-%03d-TASK", strings.ToUpper(clientName), g.now().Year(), taskNumber)
}

// ValidateProjectCodeInput rejects input ProjectCode does not define behavior for.
func ValidateProjectCodeInput(clientName string, taskNumber int) error {
	if strings.TrimSpace(clientName) == "" {
		return errEmptyClient
	}
	if taskNumber <= 0 {
		return fmt.Errorf("%w, got %d", errInvalidTaskNumber, taskNumber)
	}
	return nil
}
