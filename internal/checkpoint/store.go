// Package checkpoint provides SQLite-backed persistence for session
// checkpoints. Every engine step commits one immutable snapshot; the store
// never updates or deletes a row, so the full history of a session stays
// available for audit and time-travel.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scry-dev/scry/internal/session"
)

// NodeInitial labels the checkpoint written at session creation, before any
// node has executed.
const NodeInitial = "initial"

// ErrNotFound is returned when no checkpoint exists for the requested
// session or sequence number.
var ErrNotFound = errors.New("checkpoint not found")

// ErrSessionAborted is returned by Append when the session's latest
// checkpoint is aborted. An abort is final; no further checkpoints may be
// committed for the session.
var ErrSessionAborted = errors.New("session aborted")

// ErrSessionExists is returned by Append when an initial checkpoint is
// committed for a session that already has history.
var ErrSessionExists = errors.New("session already exists")

// Checkpoint is one immutable snapshot of a session at a point in execution.
type Checkpoint struct {
	SessionID string
	Seq       int
	Node      string // node just executed, or "initial"
	CreatedAt time.Time
	Session   session.Session
}

// Summary describes a checkpoint without its full session payload.
type Summary struct {
	Seq       int            `json:"seq"`
	Node      string         `json:"node"`
	Status    session.Status `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists checkpoints in a SQLite database. Appends for the same
// session are serialized through a per-session mutex so sequence numbers
// stay gap-free under concurrent callers; different sessions do not block
// each other.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens the SQLite database at dbPath and creates the schema if it
// does not exist.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		node TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// sessionLock returns the append mutex for a session id, creating it on
// first use.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Append commits a new checkpoint for the session and returns its sequence
// number. The first checkpoint of a session gets sequence 0; subsequent
// ones increase by exactly one.
//
// The latest-status check and the insert share one transaction under the
// per-session lock, so a node result raced against an abort is refused
// with ErrSessionAborted instead of landing after it. An initial
// checkpoint for a session that already has history is refused with
// ErrSessionExists.
func (s *Store) Append(snap session.Session, node string) (int, error) {
	if snap.ID == "" {
		return 0, fmt.Errorf("append checkpoint: empty session id")
	}
	if node == "" {
		node = NodeInitial
	}

	state, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode session state: %w", err)
	}

	lock := s.sessionLock(snap.ID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		lastSeq    int
		lastStatus string
	)
	row := tx.QueryRow(
		`SELECT seq, status FROM checkpoints WHERE session_id = ? ORDER BY seq DESC LIMIT 1`,
		snap.ID,
	)
	seq := 0
	switch err := row.Scan(&lastSeq, &lastStatus); {
	case err == sql.ErrNoRows:
		// first checkpoint of the session
	case err != nil:
		return 0, fmt.Errorf("query last checkpoint: %w", err)
	case session.Status(lastStatus) == session.StatusAborted:
		return 0, fmt.Errorf("append checkpoint: %w", ErrSessionAborted)
	case node == NodeInitial:
		return 0, fmt.Errorf("append checkpoint: %w", ErrSessionExists)
	default:
		seq = lastSeq + 1
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (session_id, seq, node, status, created_at, state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, seq, node, string(snap.Status), time.Now().UTC(), string(state),
	)
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit checkpoint: %w", err)
	}

	return seq, nil
}

// Latest returns the checkpoint with the highest sequence number for the
// session, or ErrNotFound if the session has none.
func (s *Store) Latest(sessionID string) (Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT session_id, seq, node, created_at, state
		 FROM checkpoints
		 WHERE session_id = ?
		 ORDER BY seq DESC
		 LIMIT 1`,
		sessionID,
	)
	return scanCheckpoint(row)
}

// Restore returns the checkpoint at the given sequence number. Later
// checkpoints are untouched; continuing execution from a restored snapshot
// appends new checkpoints after the current maximum.
func (s *Store) Restore(sessionID string, seq int) (Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT session_id, seq, node, created_at, state
		 FROM checkpoints
		 WHERE session_id = ? AND seq = ?`,
		sessionID, seq,
	)
	return scanCheckpoint(row)
}

// List returns summaries of all checkpoints for the session, oldest first.
func (s *Store) List(sessionID string) ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT seq, node, status, created_at
		 FROM checkpoints
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var (
			sum    Summary
			status string
		)
		if err := rows.Scan(&sum.Seq, &sum.Node, &status, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint summary: %w", err)
		}
		sum.Status = session.Status(status)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

// SessionInfo describes a session by its latest checkpoint.
type SessionInfo struct {
	SessionID string
	Seq       int
	Status    session.Status
	UpdatedAt time.Time
}

// Sessions returns every known session with its latest status, most
// recently updated first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(
		`SELECT c.session_id, c.seq, c.status, c.created_at
		 FROM checkpoints c
		 JOIN (SELECT session_id, MAX(seq) AS max_seq
		       FROM checkpoints GROUP BY session_id) m
		   ON c.session_id = m.session_id AND c.seq = m.max_seq
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []SessionInfo
	for rows.Next() {
		var (
			info   SessionInfo
			status string
		)
		if err := rows.Scan(&info.SessionID, &info.Seq, &status, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session info: %w", err)
		}
		info.Status = session.Status(status)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return infos, nil
}

func scanCheckpoint(row *sql.Row) (Checkpoint, error) {
	var (
		cp    Checkpoint
		state string
	)
	err := row.Scan(&cp.SessionID, &cp.Seq, &cp.Node, &cp.CreatedAt, &state)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(state), &cp.Session); err != nil {
		return Checkpoint{}, fmt.Errorf("decode session state: %w", err)
	}
	return cp, nil
}
