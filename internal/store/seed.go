package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rpr-kontrol/kontrol/internal/domain"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Sessions []*domain.Session `yaml:"sessions"`
}

// LoadSeed reads a YAML document of archived sessions (`sessions: [...]`).
func LoadSeed(path string) ([]*domain.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, s := range doc.Sessions {
		if s == nil || s.SessionID == "" {
			return nil, fmt.Errorf("seed session %d: session id is required", i)
		}
		if !s.Classification.Valid() {
			return nil, fmt.Errorf("seed session %s: invalid classification %q", s.SessionID, s.Classification)
		}
	}
	return doc.Sessions, nil
}

// SeedSessions archives every session not already present. Existing archive
// entries are left untouched. It returns the number of sessions inserted.
func SeedSessions(ctx context.Context, repo Repository, sessions []*domain.Session) (int, error) {
	inserted := 0
	for _, s := range sessions {
		_, err := repo.GetSession(ctx, s.SessionID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return inserted, fmt.Errorf("check seed session %s: %w", s.SessionID, err)
		}
		if err := repo.UpsertSession(ctx, s); err != nil {
			return inserted, fmt.Errorf("seed session %s: %w", s.SessionID, err)
		}
		inserted++
	}
	slog.Debug("Archive seed applied", "inserted", inserted, "total", len(sessions))
	return inserted, nil
}
