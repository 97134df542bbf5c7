package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const sessionLogSchema = `
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

// CreateLogsDB creates a session log database in a temp directory and
// returns the open handle. The database is removed with the test's
// temp dir.
func CreateLogsDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(sessionLogSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

// InsertSession inserts a session row with the given id, agent and
// start timestamp.
func InsertSession(t *testing.T, db *sql.DB, id, agent, startedAt string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO sessions
		    (id, agent, image, workspace, container_id, container_name, started_at, version)
		VALUES (?, ?, 'test/image:latest', '/tmp/workspace', 'cid', 'cname', ?, 'test')`,
		id, agent, startedAt)
	if err != nil {
		t.Fatalf("Failed to insert session %s: %v", id, err)
	}
}

// InsertMessage appends a message row to a session.
func InsertMessage(t *testing.T, db *sql.DB, sessionID, timestamp, content string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO messages (session_id, timestamp, content) VALUES (?, ?, ?)",
		sessionID, timestamp, content)
	if err != nil {
		t.Fatalf("Failed to insert message for %s: %v", sessionID, err)
	}
}
