// Package substrate records the deployment identity declared in the
// GOV-SUBSTRATES manifest into the governance event log.
package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// EventContext tags every identity record written by this service.
const EventContext = "RPR-KONTROL-Dashboard"

var errIncompleteManifest = errors.New("manifest missing provider or identity")

// Manifest is the deployment declaration. Every field is optional on disk.
type Manifest struct {
	Provider  string  `json:"provider"`
	Identity  string  `json:"identity"`
	Timestamp *string `json:"timestamp"`
}

// Complete reports whether the manifest names both provider and identity.
func (m Manifest) Complete() bool {
	return strings.TrimSpace(m.Provider) != "" && strings.TrimSpace(m.Identity) != ""
}

// Sink stores governance events. store.Repository satisfies it.
type Sink interface {
	AppendGovernanceEvent(ctx context.Context, event domain.GovernanceEvent) (domain.GovernanceEvent, error)
}

// ReadManifest parses the manifest at path. Comments and trailing commas
// are accepted.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read substrate manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return Manifest{}, fmt.Errorf("parse substrate manifest %s: %w", path, err)
	}
	return m, nil
}

// LogIdentity writes one SUBSTRATE_DEPLOY_V2 event when the manifest at path
// is complete. It never fails: every problem is logged and dropped, so it is
// safe to run in its own goroutine at startup.
func LogIdentity(ctx context.Context, path, userAgent string, sink Sink, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := logIdentity(ctx, path, userAgent, sink, logger); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errIncompleteManifest) {
			logger.Warn("Substrate identity not logged", "path", path, "error", err)
			return
		}
		logger.Error("Substrate initialization failed", "path", path, "error", err)
	}
}

func logIdentity(ctx context.Context, path, userAgent string, sink Sink, logger *slog.Logger) error {
	m, err := ReadManifest(path)
	if err != nil {
		return err
	}
	if !m.Complete() {
		return errIncompleteManifest
	}

	logger.Info("Substrate identity", "provider", m.Provider, "identity", m.Identity)
	stored, err := sink.AppendGovernanceEvent(ctx, domain.GovernanceEvent{
		ID:                uuid.NewString(),
		EventType:         domain.EventTypeSubstrateDeploy,
		Provider:          m.Provider,
		Identity:          m.Identity,
		ManifestTimestamp: m.Timestamp,
		Context:           EventContext,
		UserAgent:         userAgent,
	})
	if err != nil {
		return fmt.Errorf("append substrate event: %w", err)
	}
	logger.Info("Substrate identity logged", "event_id", stored.ID, "recorded_at", stored.RecordedAt)
	return nil
}
