package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
	retry   shared.RetryPolicy
	now     func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy(), now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		project_code TEXT NOT NULL,
		classification TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		body_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_project_code ON sessions(project_code);

	CREATE TABLE IF NOT EXISTS governance_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		provider TEXT NOT NULL,
		identity TEXT NOT NULL,
		manifest_timestamp TEXT,
		context TEXT NOT NULL,
		user_agent TEXT,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_governance_events_type ON governance_events(event_type, recorded_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ListSessions returns archived sessions, optionally narrowed by project code.
func (s *SQLiteStore) ListSessions(ctx context.Context, projectFilter string) ([]*domain.Session, error) {
	query := `SELECT body_json FROM sessions`
	var args []interface{}

	filter := strings.ToUpper(strings.TrimSpace(projectFilter))
	if filter != "" && filter != FilterAll {
		query += ` WHERE instr(project_code, ?) > 0`
		args = append(args, filter)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	sessions := []*domain.Session{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		session, err := decodeSession(body)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSession retrieves one archived session.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return decodeSession(body)
}

// UpsertSession creates or replaces an archived session.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.SessionID == "" {
		return fmt.Errorf("upsert session: session id is required")
	}
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query := `
	INSERT INTO sessions (session_id, project_code, classification, created_at, body_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		project_code = excluded.project_code,
		classification = excluded.classification,
		body_json = excluded.body_json,
		updated_at = excluded.updated_at`

	return shared.Retry(ctx, s.retry, "upsert_session", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			session.SessionID, session.ProjectCode, string(session.Classification),
			session.Timestamp.UnixNano(), string(body), s.now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// AppendGovernanceEvent writes one governance event with a server-assigned timestamp.
func (s *SQLiteStore) AppendGovernanceEvent(ctx context.Context, event domain.GovernanceEvent) (domain.GovernanceEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.RecordedAt = s.now().UTC()

	var manifestTS interface{}
	if event.ManifestTimestamp != nil {
		manifestTS = *event.ManifestTimestamp
	}
	var userAgent interface{}
	if event.UserAgent != "" {
		userAgent = event.UserAgent
	}

	query := `
	INSERT INTO governance_events (id, event_type, provider, identity, manifest_timestamp, context, user_agent, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	err := shared.Retry(ctx, s.retry, "append_governance_event", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			event.ID, event.EventType, event.Provider, event.Identity,
			manifestTS, event.Context, userAgent, event.RecordedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert governance event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.GovernanceEvent{}, err
	}
	return event, nil
}

// ListGovernanceEvents returns events of one type, oldest first.
func (s *SQLiteStore) ListGovernanceEvents(ctx context.Context, eventType string) ([]domain.GovernanceEvent, error) {
	query := `
		SELECT id, event_type, provider, identity, manifest_timestamp, context, user_agent, recorded_at
		FROM governance_events WHERE event_type = ? ORDER BY recorded_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("query governance events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close governance event rows", "error", closeErr)
		}
	}()

	var events []domain.GovernanceEvent
	for rows.Next() {
		var event domain.GovernanceEvent
		var manifestTS, userAgent sql.NullString
		var recordedAt int64
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.Provider, &event.Identity,
			&manifestTS, &event.Context, &userAgent, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan governance event: %w", err)
		}
		if manifestTS.Valid {
			ts := manifestTS.String
			event.ManifestTimestamp = &ts
		}
		event.UserAgent = userAgent.String
		event.RecordedAt = time.Unix(0, recordedAt).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate governance events: %w", err)
	}
	return events, nil
}

func decodeSession(body string) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
