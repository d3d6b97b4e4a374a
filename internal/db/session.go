package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session groups the trials recorded for one participant sitting.
type Session struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TrialCount  int       `json:"trial_count"`
}

// CreateSession stores s, assigning an ID when s.ID is empty and a creation
// time when s.CreatedAt is zero.
func (db *DB) CreateSession(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, participant, notes, created_unix_nanos) VALUES (?, ?, ?, ?)`,
		s.ID, s.Participant, s.Notes, s.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return nil
}

// Session returns one session with its trial count.
func (db *DB) Session(ctx context.Context, id string) (Session, error) {
	row := db.QueryRowContext(ctx, `
		SELECT s.session_id, s.participant, s.notes, s.created_unix_nanos,
		       (SELECT COUNT(*) FROM trials t WHERE t.session_id = s.session_id)
		FROM sessions s WHERE s.session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, err
}

// Sessions lists every session, newest first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.session_id, s.participant, s.notes, s.created_unix_nanos,
		       (SELECT COUNT(*) FROM trials t WHERE t.session_id = s.session_id)
		FROM sessions s ORDER BY s.created_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		s       Session
		created int64
	)
	if err := sc.Scan(&s.ID, &s.Participant, &s.Notes, &created, &s.TrialCount); err != nil {
		return Session{}, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	return s, nil
}
