// Package store provides persistence for the session archive and the
// governance event log.
package store

import (
	"context"
	"errors"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FilterAll disables project-code filtering in ListSessions.
const FilterAll = "ALL"

// Repository defines the interface for the session archive and event log.
type Repository interface {
	// ListSessions returns archived sessions in insertion order. A non-empty
	// projectFilter other than FilterAll keeps sessions whose project code
	// contains the uppercased filter.
	ListSessions(ctx context.Context, projectFilter string) ([]*domain.Session, error)

	// GetSession retrieves one archived session or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpsertSession archives a session, replacing any previous copy.
	UpsertSession(ctx context.Context, session *domain.Session) error

	// AppendGovernanceEvent writes one event. The store assigns RecordedAt and,
	// when empty, the ID. The stored event is returned.
	AppendGovernanceEvent(ctx context.Context, event domain.GovernanceEvent) (domain.GovernanceEvent, error)

	// ListGovernanceEvents returns events of eventType, oldest first.
	ListGovernanceEvents(ctx context.Context, eventType string) ([]domain.GovernanceEvent, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
