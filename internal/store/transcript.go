// Package store persists conversation transcripts in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ilochat/internal/conversation"
	"ilochat/internal/logging"
)

// TranscriptStore saves and restores conversation sessions. A session is
// the full ordered message history under a caller-chosen id; saving an
// existing id replaces its messages wholesale.
type TranscriptStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// SessionInfo summarizes a stored session for listing.
type SessionInfo struct {
	ID        string
	Title     string
	Messages  int
	UpdatedAt time.Time
}

// NewTranscriptStore initializes the SQLite database at the given path.
func NewTranscriptStore(path string) (*TranscriptStore, error) {
	logging.Store("opening transcript store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &TranscriptStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("transcript schema ready")
	return s, nil
}

func (s *TranscriptStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		ilos_json TEXT,
		suggested_json TEXT,
		sent_at DATETIME,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveSession stores the transcript under id, replacing any previous
// messages for that id.
func (s *TranscriptStore) SaveSession(id, title string, msgs []conversation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("saving session %s: %d messages", id, len(msgs))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = CURRENT_TIMESTAMP`,
		id, title,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (id, session_id, seq, role, text, ilos_json, suggested_json, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		ilos, err := marshalOrNil(m.ILOs)
		if err != nil {
			return err
		}
		suggested, err := marshalOrNil(m.SuggestedQuestions)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(m.ID, id, i, string(m.Role), m.Text, ilos, suggested, m.Time); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	logging.Store("saved session %s (%d messages)", id, len(msgs))
	return nil
}

// LoadSession returns the transcript stored under id in send order.
func (s *TranscriptStore) LoadSession(id string) ([]conversation.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("session %s not found", id)
	}

	rows, err := s.db.Query(
		`SELECT id, role, text, ilos_json, suggested_json, sent_at
		 FROM messages WHERE session_id = ? ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	for rows.Next() {
		var (
			m         conversation.Message
			role      string
			ilos      sql.NullString
			suggested sql.NullString
			sentAt    sql.NullTime
		)
		if err := rows.Scan(&m.ID, &role, &m.Text, &ilos, &suggested, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = conversation.Role(role)
		if ilos.Valid {
			if err := json.Unmarshal([]byte(ilos.String), &m.ILOs); err != nil {
				return nil, fmt.Errorf("corrupt ilos_json: %w", err)
			}
		}
		if suggested.Valid {
			if err := json.Unmarshal([]byte(suggested.String), &m.SuggestedQuestions); err != nil {
				return nil, fmt.Errorf("corrupt suggested_json: %w", err)
			}
		}
		if sentAt.Valid {
			m.Time = sentAt.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListSessions returns stored sessions, most recently updated first.
func (s *TranscriptStore) ListSessions() ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT s.id, s.title, s.updated_at, COUNT(m.session_id)
		 FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id ORDER BY s.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.UpdatedAt, &info.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSession removes a stored session and its messages.
func (s *TranscriptStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logging.Store("deleted session %s", id)
	return nil
}

// Close closes the database.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

func marshalOrNil(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case []conversation.ILO:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}
