package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is the persisted summary of one playback session.
type Session struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Mode           string     `json:"mode"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Reason         string     `json:"reason"`
	Error          string     `json:"error,omitempty"`
	Frames         int64      `json:"frames"`
	DetectedFrames int64      `json:"detected_frames"`
	MaxPersons     int        `json:"max_persons"`
}

// SessionRepository provides access to session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session that has just started.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, mode, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.Mode, sess.StartedAt,
	)
	return err
}

// Finish records how a session ended.
func (r *SessionRepository) Finish(sess *Session) error {
	if sess.EndedAt == nil {
		now := time.Now()
		sess.EndedAt = &now
	}
	result, err := r.db.Exec(
		`UPDATE sessions
		 SET ended_at = ?, reason = ?, error = ?, frames = ?, detected_frames = ?, max_persons = ?
		 WHERE id = ?`,
		*sess.EndedAt, sess.Reason, sess.Error, sess.Frames, sess.DetectedFrames, sess.MaxPersons, sess.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionColumns = `id, source, mode, started_at, ended_at, reason, error, frames, detected_frames, max_persons`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.Source, &s.Mode, &s.StartedAt, &ended, &s.Reason, &s.Error,
		&s.Frames, &s.DetectedFrames, &s.MaxPersons); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first. A non-positive limit returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
