package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id      TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_pairs (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	user_text      TEXT NOT NULL,
	assistant_text TEXT NOT NULL,
	emotion        TEXT NOT NULL,
	urgency        INTEGER NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_pairs_user ON chat_pairs(user_id);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	summary    TEXT NOT NULL,
	occurs_at  TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id);
`

// Store implements the profile, history and event stores on a local
// SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and ensures the schema.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "mybro.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM profiles WHERE user_id = ?`, string(userID))

	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("sqlite GetProfile: %w", err)
	}

	return &domain.Profile{ID: userID, DisplayName: name}, nil
}

// UpsertProfile implements domain.ProfileStore.
func (s *Store) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile with id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, display_name) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name`,
		string(profile.ID), profile.DisplayName)
	if err != nil {
		return fmt.Errorf("sqlite UpsertProfile: %w", err)
	}
	return nil
}

// GetRecent implements domain.HistoryStore. The query reads newest
// first (insertion order via rowid) so the limit keeps the most recent
// pairs, then the slice is reversed back to chronological order.
func (s *Store) GetRecent(ctx context.Context, userID domain.UserID, limit int) ([]domain.ChatPair, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_text, assistant_text, emotion, urgency, created_at
		   FROM chat_pairs
		  WHERE user_id = ?
		  ORDER BY rowid DESC
		  LIMIT ?`,
		string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite GetRecent: %w", err)
	}
	defer rows.Close()

	var pairs []domain.ChatPair
	for rows.Next() {
		var p domain.ChatPair
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserText, &p.AssistantText, &p.Emotion, &p.Urgency, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite GetRecent scan: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite GetRecent rows: %w", err)
	}

	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs, nil
}

// AppendPair implements domain.HistoryStore.
func (s *Store) AppendPair(ctx context.Context, userID domain.UserID, userText, assistantText string, c domain.Classification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_pairs (id, user_id, user_text, assistant_text, emotion, urgency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(userID), userText, assistantText, c.Emotion, c.Urgency,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite AppendPair: %w", err)
	}
	return nil
}

// AddEvent implements domain.EventStore.
func (s *Store) AddEvent(ctx context.Context, userID domain.UserID, event domain.Event) error {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, kind, summary, occurs_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(userID), event.Kind, event.Summary, event.OccursAt,
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite AddEvent: %w", err)
	}
	return nil
}
