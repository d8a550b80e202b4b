package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSequenceGap is returned when an action is appended out of order.
var ErrSequenceGap = errors.New("action sequence gap")

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Status    string // "waiting", "playing", "finished"
	CreatedAt time.Time
}

// ActionRow is one entry of a session's action log.
type ActionRow struct {
	SessionCode string
	Seq         int // 1-based application order
	Action      []byte
	CreatedAt   time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// An in-memory database exists per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS session_players (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			seat         INTEGER NOT NULL,
			player_id    INTEGER NOT NULL,
			PRIMARY KEY (session_code, seat)
		);
		CREATE TABLE IF NOT EXISTS action_log (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			seq          INTEGER NOT NULL,
			action       BLOB NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_code, seq)
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status) VALUES (?, ?, 'waiting')",
		code, gameType,
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, status, created_at FROM sessions WHERE code = ?", code)
	var sr SessionRow
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// SavePlayers replaces the seating of a session. Seat order is turn order.
func (s *Store) SavePlayers(code string, players []uint32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM session_players WHERE session_code = ?", code); err != nil {
		return err
	}
	for seat, id := range players {
		if _, err := tx.Exec(
			"INSERT INTO session_players (session_code, seat, player_id) VALUES (?, ?, ?)",
			code, seat, id,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListPlayers returns a session's players in seat order.
func (s *Store) ListPlayers(code string) ([]uint32, error) {
	rows, err := s.db.Query("SELECT player_id FROM session_players WHERE session_code = ? ORDER BY seat", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var players []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		players = append(players, id)
	}
	return players, rows.Err()
}

// AppendAction adds the action with sequence number seq to a session's log.
// seq must be exactly one past the last stored entry.
func (s *Store) AppendAction(code string, seq int, action []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var last int
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) FROM action_log WHERE session_code = ?", code,
	).Scan(&last); err != nil {
		return err
	}
	if seq != last+1 {
		return fmt.Errorf("%w: expected %d got %d", ErrSequenceGap, last+1, seq)
	}
	if _, err := tx.Exec(
		"INSERT INTO action_log (session_code, seq, action) VALUES (?, ?, ?)",
		code, seq, action,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListActions returns a session's action log in sequence order.
func (s *Store) ListActions(code string) ([]ActionRow, error) {
	rows, err := s.db.Query(
		"SELECT session_code, seq, action, created_at FROM action_log WHERE session_code = ? ORDER BY seq", code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ActionRow
	for rows.Next() {
		var ar ActionRow
		if err := rows.Scan(&ar.SessionCode, &ar.Seq, &ar.Action, &ar.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ar)
	}
	return result, rows.Err()
}

// DeleteSession removes a session with its players and action log.
func (s *Store) DeleteSession(code string) error {
	for _, q := range []string{
		"DELETE FROM action_log WHERE session_code = ?",
		"DELETE FROM session_players WHERE session_code = ?",
		"DELETE FROM sessions WHERE code = ?",
	} {
		if _, err := s.db.Exec(q, code); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
