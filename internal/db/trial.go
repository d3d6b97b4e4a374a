package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// ErrInvalidScore is returned for manual scores outside -1..3.
var ErrInvalidScore = errors.New("invalid score")

// StoredTrial is a trial together with its place in a session.
type StoredTrial struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"` // 1-based position within the session
	kinematics.Trial
}

// TrialInfo is the sample-free listing form of a stored trial.
type TrialInfo struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Index          int       `json:"index"`
	StartTime      time.Time `json:"start_time"`
	SampleRate     int       `json:"sample_rate"`
	Frames         int       `json:"frames"`
	ButtonPressed  bool      `json:"button_pressed"`
	Score          int       `json:"score"`
	PredictedScore *int      `json:"predicted_score,omitempty"`
}

type samplesDoc struct {
	Left  []kinematics.Sample `json:"left"`
	Right []kinematics.Sample `json:"right"`
}

// SaveTrial appends t to the session, assigning the next trial index and an
// ID when t.ID is empty.
func (db *DB) SaveTrial(ctx context.Context, sessionID string, t kinematics.Trial) (StoredTrial, error) {
	if err := t.Validate(); err != nil {
		return StoredTrial{}, fmt.Errorf("save trial: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	samples, err := json.Marshal(samplesDoc{Left: t.Left, Right: t.Right})
	if err != nil {
		return StoredTrial{}, fmt.Errorf("encode samples: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return StoredTrial{}, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists); err != nil {
		return StoredTrial{}, err
	}
	if exists == 0 {
		return StoredTrial{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	var index int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(trial_index), 0) + 1 FROM trials WHERE session_id = ?`, sessionID,
	).Scan(&index); err != nil {
		return StoredTrial{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trials (
			trial_id, session_id, trial_index, start_unix_nanos, sample_rate,
			button_pressed, score, predicted_score, frames, samples_json, updated_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, sessionID, index, t.StartTime.UnixNano(), t.SampleRate,
		t.ButtonPressed, t.Score, nullableInt(t.PredictedScore), t.Len(), string(samples),
		time.Now().UnixNano(),
	)
	if err != nil {
		return StoredTrial{}, fmt.Errorf("insert trial %s: %w", t.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return StoredTrial{}, err
	}
	return StoredTrial{SessionID: sessionID, Index: index, Trial: t}, nil
}

const trialColumns = `trial_id, session_id, trial_index, start_unix_nanos, sample_rate,
	button_pressed, score, predicted_score, samples_json`

// Trial loads one trial with its samples.
func (db *DB) Trial(ctx context.Context, id string) (StoredTrial, error) {
	row := db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE trial_id = ?`, id)
	st, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredTrial{}, fmt.Errorf("trial %s: %w", id, ErrNotFound)
	}
	return st, err
}

// TrialsForSession loads every trial of a session in recording order.
func (db *DB) TrialsForSession(ctx context.Context, sessionID string) ([]StoredTrial, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+trialColumns+` FROM trials WHERE session_id = ? ORDER BY trial_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []StoredTrial
	for rows.Next() {
		st, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, st)
	}
	return trials, rows.Err()
}

// ListTrials lists a session's trials without their samples.
func (db *DB) ListTrials(ctx context.Context, sessionID string) ([]TrialInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT trial_id, session_id, trial_index, start_unix_nanos, sample_rate,
		       frames, button_pressed, score, predicted_score
		FROM trials WHERE session_id = ? ORDER BY trial_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []TrialInfo
	for rows.Next() {
		var (
			info      TrialInfo
			start     int64
			predicted sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &info.SessionID, &info.Index, &start, &info.SampleRate,
			&info.Frames, &info.ButtonPressed, &info.Score, &predicted); err != nil {
			return nil, err
		}
		info.StartTime = time.Unix(0, start).UTC()
		info.PredictedScore = intPtr(predicted)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SetScore stores a manual score (-1 clears it). Any stored analysis of the
// trial is dropped in the same transaction, so callers must re-analyse.
func (db *DB) SetScore(ctx context.Context, id string, score int) error {
	if score < -1 || score > kinematics.ScoreGood {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	return db.updateTrial(ctx, id, `UPDATE trials SET score = ?, updated_unix_nanos = ? WHERE trial_id = ?`,
		score, time.Now().UnixNano(), id)
}

// SetPredictedScore records an externally estimated score; nil clears it.
// Like SetScore it drops the stored analysis.
func (db *DB) SetPredictedScore(ctx context.Context, id string, score *int) error {
	if score != nil && (*score < 0 || *score > kinematics.ScoreGood) {
		return fmt.Errorf("%w: predicted %d", ErrInvalidScore, *score)
	}
	return db.updateTrial(ctx, id, `UPDATE trials SET predicted_score = ?, updated_unix_nanos = ? WHERE trial_id = ?`,
		nullableInt(score), time.Now().UnixNano(), id)
}

// ReplaceTrial overwrites the samples and timing of an existing trial, for
// example after kinematics.Cut. The stored analysis is dropped.
func (db *DB) ReplaceTrial(ctx context.Context, t kinematics.Trial) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("replace trial: %w", err)
	}
	samples, err := json.Marshal(samplesDoc{Left: t.Left, Right: t.Right})
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	return db.updateTrial(ctx, t.ID, `
		UPDATE trials SET start_unix_nanos = ?, sample_rate = ?, button_pressed = ?,
			score = ?, predicted_score = ?, frames = ?, samples_json = ?, updated_unix_nanos = ?
		WHERE trial_id = ?`,
		t.StartTime.UnixNano(), t.SampleRate, t.ButtonPressed, t.Score, nullableInt(t.PredictedScore),
		t.Len(), string(samples), time.Now().UnixNano(), t.ID)
}

func (db *DB) updateTrial(ctx context.Context, id, query string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update trial %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("trial %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trial_analysis WHERE trial_id = ?`, id); err != nil {
		return fmt.Errorf("drop analysis of %s: %w", id, err)
	}
	return tx.Commit()
}

func scanTrial(sc scanner) (StoredTrial, error) {
	var (
		st        StoredTrial
		start     int64
		predicted sql.NullInt64
		samples   string
	)
	if err := sc.Scan(&st.ID, &st.SessionID, &st.Index, &start, &st.SampleRate,
		&st.ButtonPressed, &st.Score, &predicted, &samples); err != nil {
		return StoredTrial{}, err
	}
	var doc samplesDoc
	if err := json.Unmarshal([]byte(samples), &doc); err != nil {
		return StoredTrial{}, fmt.Errorf("decode samples of %s: %w", st.ID, err)
	}
	st.Left, st.Right = doc.Left, doc.Right
	st.StartTime = time.Unix(0, start).UTC()
	st.PredictedScore = intPtr(predicted)
	return st, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
