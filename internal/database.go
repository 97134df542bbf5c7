package internal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const logsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    agent           TEXT NOT NULL,
    image           TEXT NOT NULL,
    workspace       TEXT NOT NULL,
    container_id    TEXT NOT NULL,
    container_name  TEXT NOT NULL,
    started_at      TEXT NOT NULL,
    ended_at        TEXT,
    exit_reason     TEXT,
    version         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    timestamp   TEXT NOT NULL,
    content     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`

// OpenLogsDB opens the session log database, enabling WAL mode and
// creating the schema if it does not exist yet. Both operations are
// idempotent, so every writer and reader goes through this.
func OpenLogsDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "pragma", Err: err}
	}

	if _, err := db.Exec(logsSchema); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "schema", Err: err}
	}

	return db, nil
}

// SessionRecord is one row from the sessions table.
type SessionRecord struct {
	ID            string
	Agent         string
	Image         string
	Workspace     string
	ContainerID   string
	ContainerName string
	StartedAt     string
	EndedAt       sql.NullString
	ExitReason    sql.NullString
	Version       string
	MessageCount  int
}

// MessageRecord is one row from the messages table.
type MessageRecord struct {
	ID        int64
	SessionID string
	Timestamp string
	Content   string
}

// ListSessions returns recorded sessions, newest first. A limit of 0
// returns all sessions.
func ListSessions(db *sql.DB, limit int) ([]SessionRecord, error) {
	query := `
		SELECT s.id, s.agent, s.image, s.workspace, s.container_id, s.container_name,
		       s.started_at, s.ended_at, s.exit_reason, s.version,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var s SessionRecord
		if err := rows.Scan(&s.ID, &s.Agent, &s.Image, &s.Workspace, &s.ContainerID,
			&s.ContainerName, &s.StartedAt, &s.EndedAt, &s.ExitReason, &s.Version,
			&s.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// GetSession returns a single session by id, or nil when not found.
func GetSession(db *sql.DB, sessionID string) (*SessionRecord, error) {
	row := db.QueryRow(`
		SELECT id, agent, image, workspace, container_id, container_name,
		       started_at, ended_at, exit_reason, version
		FROM sessions WHERE id = ?`, sessionID)

	var s SessionRecord
	err := row.Scan(&s.ID, &s.Agent, &s.Image, &s.Workspace, &s.ContainerID,
		&s.ContainerName, &s.StartedAt, &s.EndedAt, &s.ExitReason, &s.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	return &s, nil
}

// FindSession resolves a session by full id or unique prefix, so users
// can paste the truncated ids the list view shows. Returns nil when
// nothing matches and an error when the prefix is ambiguous.
func FindSession(db *sql.DB, idOrPrefix string) (*SessionRecord, error) {
	session, err := GetSession(db, idOrPrefix)
	if err != nil || session != nil {
		return session, err
	}

	// substr comparison rather than LIKE, so %/_ in the input match
	// literally instead of acting as wildcards.
	rows, err := db.Query(
		"SELECT id FROM sessions WHERE substr(id, 1, length(?)) = ? LIMIT 2",
		idOrPrefix, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("query session prefix %s: %w", idOrPrefix, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return GetSession(db, ids[0])
	default:
		return nil, fmt.Errorf("session id prefix %q is ambiguous", idOrPrefix)
	}
}

// SessionMessages returns the messages of a session in insertion order.
// Insertion order is the durable order; the timestamp is advisory.
func SessionMessages(db *sql.DB, sessionID string) ([]MessageRecord, error) {
	rows, err := db.Query(`
		SELECT id, session_id, timestamp, content
		FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Timestamp, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
