package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Session describes one run of the daemon or the simulator against a fixed
// layout and grid.
type Session struct {
	ID             string
	Started        time.Time
	Ended          *time.Time
	Emitters       int
	Sensors        int
	CellsX         int
	CellsY         int
	Algorithm      string
	InfluenceModel string
	Notes          string
}

// CreateSession stores s under a new random ID, which is written back to s.
// A zero Started time is replaced by the current time.
func (db *DB) CreateSession(s *Session) error {
	s.ID = uuid.NewString()
	if s.Started.IsZero() {
		s.Started = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO sessions (
			session_id, started_unix, emitters, sensors, cells_x, cells_y,
			algorithm, influence_model, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, unixSeconds(s.Started), s.Emitters, s.Sensors, s.CellsX, s.CellsY,
		s.Algorithm, s.InfluenceModel, s.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession records the end time of a session.
func (db *DB) EndSession(id string, ended time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, unixSeconds(ended), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	return requireRow(res, "session "+id)
}

// GetSession loads a session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT session_id, started_unix, ended_unix, emitters, sensors, cells_x, cells_y,
			algorithm, influence_model, notes
		FROM sessions WHERE session_id = ?`, id)

	var (
		s       Session
		started float64
		ended   sql.NullFloat64
	)
	err := row.Scan(&s.ID, &started, &ended, &s.Emitters, &s.Sensors, &s.CellsX, &s.CellsY,
		&s.Algorithm, &s.InfluenceModel, &s.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	s.Started = fromUnixSeconds(started)
	if ended.Valid {
		t := fromUnixSeconds(ended.Float64)
		s.Ended = &t
	}
	return &s, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9))
}
