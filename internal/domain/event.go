package domain

import "time"

// EventTypeSubstrateDeploy tags deployment identity records.
const EventTypeSubstrateDeploy = "SUBSTRATE_DEPLOY_V2"

// GovernanceEvent is an append-only record in the governance event log.
// RecordedAt is assigned by the store, never by the caller.
type GovernanceEvent struct {
	ID                string    `json:"id"`
	EventType         string    `json:"event_type"`
	Provider          string    `json:"provider"`
	Identity          string    `json:"identity"`
	ManifestTimestamp *string   `json:"manifest_timestamp"`
	Context           string    `json:"context"`
	UserAgent         string    `json:"user_agent,omitempty"`
	RecordedAt        time.Time `json:"recorded_at"`
}
