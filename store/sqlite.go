package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; a second connection
	// would see an empty schema.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			framework TEXT NOT NULL,
			label TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			event_count INTEGER NOT NULL DEFAULT 0,
			node_count INTEGER NOT NULL DEFAULT 0,
			warnings TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_accessed ON sessions(last_accessed)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT PRIMARY KEY,
			workflow TEXT,
			sequence TEXT,
			messages TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	warnings, _ := json.Marshal(session.Warnings)
	metadata := string(session.Metadata)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, framework, label, created_at, last_accessed, event_count, node_count, warnings, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.Framework, session.Label,
		session.CreatedAt, session.LastAccessed,
		session.EventCount, session.NodeCount, string(warnings), metadata)
	return err
}

// GetSession retrieves a session by ID and touches its last_accessed time.
// A missing session yields (nil, nil).
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT session_id, framework, label, created_at, last_accessed, event_count, node_count, warnings, metadata
		 FROM sessions WHERE session_id = ?`, sessionID))
	if err != nil || session == nil {
		return session, err
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_accessed = ? WHERE session_id = ?`, now, sessionID); err != nil {
		return nil, err
	}
	session.LastAccessed = now
	return session, nil
}

// ListSessions returns all sessions, most recently created first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, framework, label, created_at, last_accessed, event_count, node_count, warnings, metadata
		 FROM sessions ORDER BY created_at DESC, session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var label, warnings, metadata sql.NullString
	err := row.Scan(&session.SessionID, &session.Framework, &label,
		&session.CreatedAt, &session.LastAccessed,
		&session.EventCount, &session.NodeCount, &warnings, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if label.Valid {
		session.Label = label.String
	}
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &session.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for %s: %w", session.SessionID, err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		session.Metadata = json.RawMessage(metadata.String)
	}
	return &session, nil
}

// DeleteSession removes a session and its snapshot. Deleting an unknown
// session is a no-op.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

// SaveSnapshot persists the build outputs for a session, replacing any
// previous snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot *Snapshot) error {
	workflow, sequence, messages, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (session_id, workflow, sequence, messages) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET workflow = excluded.workflow, sequence = excluded.sequence, messages = excluded.messages`,
		sessionID, workflow, sequence, messages)
	return err
}

func encodeSnapshot(snapshot *Snapshot) (workflow, sequence, messages sql.NullString, err error) {
	if snapshot.Workflow != nil {
		data, merr := json.Marshal(snapshot.Workflow)
		if merr != nil {
			return workflow, sequence, messages, fmt.Errorf("encode workflow: %w", merr)
		}
		workflow = sql.NullString{String: string(data), Valid: true}
	}
	if snapshot.Sequence != nil {
		data, merr := json.Marshal(snapshot.Sequence)
		if merr != nil {
			return workflow, sequence, messages, fmt.Errorf("encode sequence: %w", merr)
		}
		sequence = sql.NullString{String: string(data), Valid: true}
	}
	if snapshot.Messages != nil {
		data, merr := json.Marshal(snapshot.Messages)
		if merr != nil {
			return workflow, sequence, messages, fmt.Errorf("encode messages: %w", merr)
		}
		messages = sql.NullString{String: string(data), Valid: true}
	}
	return workflow, sequence, messages, nil
}

// GetSnapshot retrieves the persisted build outputs for a session. A
// missing snapshot yields (nil, nil).
func (s *SQLiteStore) GetSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	var workflow, sequence, messages sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT workflow, sequence, messages FROM snapshots WHERE session_id = ?`,
		sessionID).Scan(&workflow, &sequence, &messages)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{}
	if workflow.Valid {
		if err := json.Unmarshal([]byte(workflow.String), &snapshot.Workflow); err != nil {
			return nil, fmt.Errorf("decode workflow for %s: %w", sessionID, err)
		}
	}
	if sequence.Valid {
		if err := json.Unmarshal([]byte(sequence.String), &snapshot.Sequence); err != nil {
			return nil, fmt.Errorf("decode sequence for %s: %w", sessionID, err)
		}
	}
	if messages.Valid {
		if err := json.Unmarshal([]byte(messages.String), &snapshot.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for %s: %w", sessionID, err)
		}
	}
	return snapshot, nil
}

// CleanupExpired deletes sessions whose last access is older than maxAge.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_accessed < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
