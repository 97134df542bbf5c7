package internal

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Escape-sequence parser states. Raw terminal input delivers arrow
// keys, function keys and modified cursor movement as multi-byte ANSI
// sequences; the parser strips them so they never pollute the logged
// message text. A sequence may be split across any number of reads,
// so the state lives on the logger between LogInput calls.
const (
	escStateNormal = iota // not inside any escape sequence
	escStateEscape        // saw ESC (0x1B), waiting for discriminator byte
	escStateCSI           // inside CSI sequence (ESC [), waiting for final byte
	escStateSS3           // inside SS3 sequence (ESC O), skip one more byte
)

// SessionMeta describes the container attachment a session records.
type SessionMeta struct {
	Agent         string
	Image         string
	Workspace     string
	ContainerID   string
	ContainerName string
	Version       string
}

// SessionLogger captures user-submitted messages into the session log
// database. It buffers keystrokes and writes the accumulated text as
// one message when the user presses Enter ('\r' in raw terminal mode).
//
// A logger is driven by a single attach loop; it is not safe for
// concurrent use.
type SessionLogger struct {
	enabled   bool
	dbPath    string
	db        *sql.DB
	sessionID string
	buffer    []byte
	escState  int
}

// NewSessionLogger returns a logger writing to the database at dbPath.
// When enabled is false every method is a no-op and the database file
// is never touched.
func NewSessionLogger(dbPath string, enabled bool) *SessionLogger {
	return &SessionLogger{enabled: enabled, dbPath: dbPath}
}

// OpenSession creates the session row and returns the session id, or
// an empty id when the logger is disabled. The database directory and
// schema are created on demand; a store that cannot be opened is a
// fatal error for the caller to handle, not a silent downgrade.
func (l *SessionLogger) OpenSession(meta SessionMeta) (string, error) {
	if !l.enabled {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(l.dbPath), 0o755); err != nil {
		return "", &StorageError{Path: l.dbPath, Op: "mkdir", Err: err}
	}

	db, err := OpenLogsDB(l.dbPath)
	if err != nil {
		return "", err
	}

	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = db.Exec(`
		INSERT INTO sessions
		    (id, agent, image, workspace, container_id, container_name, started_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, meta.Agent, meta.Image, meta.Workspace,
		meta.ContainerID, meta.ContainerName, now, meta.Version)
	if err != nil {
		db.Close()
		return "", &StorageError{Path: l.dbPath, Op: "insert", Err: err}
	}

	l.db = db
	l.sessionID = sessionID
	return sessionID, nil
}

// LogInput processes raw input bytes, buffering keystrokes and writing
// a message on Enter. Escape sequences, tabs and other control bytes
// are filtered out; backspace removes the last buffered byte.
func (l *SessionLogger) LogInput(data []byte) {
	if !l.enabled || len(data) == 0 {
		return
	}

	for _, b := range data {
		switch l.escState {
		case escStateEscape:
			// Byte immediately after ESC determines the sequence type.
			switch b {
			case '[':
				l.escState = escStateCSI
			case 'O':
				l.escState = escStateSS3
			default:
				// Two-byte sequence (e.g. Alt+key), fully consumed.
				l.escState = escStateNormal
			}
			continue

		case escStateCSI:
			// Parameter bytes 0x30-0x3F and intermediates 0x20-0x2F
			// pass through; a final byte 0x40-0x7E ends the sequence.
			if b >= 0x40 && b <= 0x7E {
				l.escState = escStateNormal
			}
			continue

		case escStateSS3:
			// Exactly one byte follows ESC O.
			l.escState = escStateNormal
			continue
		}

		switch {
		case b == 0x1B: // ESC
			l.escState = escStateEscape
		case b == '\r': // Enter
			l.flushMessage()
		case b == '\t':
			// Tab usually triggers shell completion, not literal content.
		case b == 0x7F || b == 0x08: // Backspace / Delete
			if len(l.buffer) > 0 {
				l.buffer = l.buffer[:len(l.buffer)-1]
			}
		case b >= 0x20: // printable and UTF-8 continuation bytes
			l.buffer = append(l.buffer, b)
		default:
			// Remaining control bytes are dropped.
		}
	}
}

// CloseSession flushes any pending buffered line, records the end
// timestamp and exit reason, and closes the database. Calling it again
// (or without a prior open) is a no-op.
func (l *SessionLogger) CloseSession(exitReason string) {
	if !l.enabled || l.db == nil {
		return
	}

	l.flushMessage()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := l.db.Exec(
		"UPDATE sessions SET ended_at = ?, exit_reason = ? WHERE id = ?",
		now, exitReason, l.sessionID); err != nil {
		LogWarn("Failed to finalize session %s: %v", l.sessionID, err)
	}

	if err := l.db.Close(); err != nil {
		LogWarn("Failed to close session log database: %v", err)
	}
	l.db = nil
}

// flushMessage writes the current buffer as a message row and clears
// it. An empty buffer is a no-op, so no zero-length messages exist.
// The buffer stays raw bytes until this point because a multi-byte
// UTF-8 character can arrive split across LogInput calls; each invalid
// byte is replaced with U+FFFD rather than failing the write.
func (l *SessionLogger) flushMessage() {
	if len(l.buffer) == 0 || l.db == nil {
		return
	}

	content := decodeLossy(l.buffer)
	l.buffer = l.buffer[:0]

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := l.db.Exec(
		"INSERT INTO messages (session_id, timestamp, content) VALUES (?, ?, ?)",
		l.sessionID, now, content); err != nil {
		LogWarn("Failed to record message for session %s: %v", l.sessionID, err)
	}
}

// decodeLossy converts raw bytes to a string, substituting one U+FFFD
// per invalid byte. strings.ToValidUTF8 collapses a whole run of
// invalid bytes into a single replacement, which would under-count how
// much input was garbled.
func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(data[:size])
		}
		data = data[size:]
	}
	return b.String()
}
