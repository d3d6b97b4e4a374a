package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// SaveAnalysis stores a, replacing any previous analysis of the same trial.
// The whole row is written at once; events are never partially updated.
func (db *DB) SaveAnalysis(ctx context.Context, a kinematics.Analysis) error {
	features, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	bimanual, err := json.Marshal(a.Bimanual)
	if err != nil {
		return fmt.Errorf("encode bimanual: %w", err)
	}
	unimanual, err := json.Marshal(a.Unimanual)
	if err != nil {
		return fmt.Errorf("encode unimanual: %w", err)
	}
	ev := a.Events
	_, err = db.ExecContext(ctx, `
		INSERT INTO trial_analysis (
			trial_id, role, score, e1, e2, e3, e4, e5, e6, detection_error,
			monotonic, computed, features_json, bimanual_json, unimanual_json, analysed_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trial_id) DO UPDATE SET
			role = excluded.role,
			score = excluded.score,
			e1 = excluded.e1, e2 = excluded.e2, e3 = excluded.e3,
			e4 = excluded.e4, e5 = excluded.e5, e6 = excluded.e6,
			detection_error = excluded.detection_error,
			monotonic = excluded.monotonic,
			computed = excluded.computed,
			features_json = excluded.features_json,
			bimanual_json = excluded.bimanual_json,
			unimanual_json = excluded.unimanual_json,
			analysed_unix_nanos = excluded.analysed_unix_nanos`,
		a.TrialID, a.Role.String(), a.Score, ev.E1, ev.E2, ev.E3, ev.E4, ev.E5, ev.E6, a.DetectionError,
		a.Monotonic, a.Computed, string(features), string(bimanual), string(unimanual), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save analysis of %s: %w", a.TrialID, err)
	}
	return nil
}

// DeleteAnalysis removes the stored analysis of a trial. A trial without one
// is not an error.
func (db *DB) DeleteAnalysis(ctx context.Context, trialID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM trial_analysis WHERE trial_id = ?`, trialID); err != nil {
		return fmt.Errorf("drop analysis of %s: %w", trialID, err)
	}
	return nil
}

const analysisColumns = `a.trial_id, a.role, a.score, a.e1, a.e2, a.e3, a.e4, a.e5, a.e6,
	a.detection_error, a.monotonic, a.computed, a.features_json, a.bimanual_json, a.unimanual_json`

// Analysis loads the stored analysis of one trial.
func (db *DB) Analysis(ctx context.Context, trialID string) (kinematics.Analysis, error) {
	row := db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM trial_analysis a WHERE a.trial_id = ?`, trialID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return kinematics.Analysis{}, fmt.Errorf("analysis of %s: %w", trialID, ErrNotFound)
	}
	return a, err
}

// AnalysesForSession loads the analyses of a session's trials in recording
// order. Trials that have not been analysed are skipped.
func (db *DB) AnalysesForSession(ctx context.Context, sessionID string) ([]kinematics.Analysis, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM trial_analysis a JOIN trials t ON t.trial_id = a.trial_id
		WHERE t.session_id = ? ORDER BY t.trial_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []kinematics.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func scanAnalysis(sc scanner) (kinematics.Analysis, error) {
	var (
		a                             kinematics.Analysis
		role                          string
		features, bimanual, unimanual string
	)
	ev := &a.Events
	if err := sc.Scan(&a.TrialID, &role, &a.Score, &ev.E1, &ev.E2, &ev.E3, &ev.E4, &ev.E5, &ev.E6,
		&a.DetectionError, &a.Monotonic, &a.Computed, &features, &bimanual, &unimanual); err != nil {
		return kinematics.Analysis{}, err
	}
	r, err := kinematics.ParseRole(role)
	if err != nil {
		return kinematics.Analysis{}, fmt.Errorf("analysis of %s: %w", a.TrialID, err)
	}
	a.Role = r
	if err := json.Unmarshal([]byte(features), &a.Features); err != nil {
		return kinematics.Analysis{}, fmt.Errorf("decode features of %s: %w", a.TrialID, err)
	}
	if err := json.Unmarshal([]byte(bimanual), &a.Bimanual); err != nil {
		return kinematics.Analysis{}, fmt.Errorf("decode bimanual of %s: %w", a.TrialID, err)
	}
	if err := json.Unmarshal([]byte(unimanual), &a.Unimanual); err != nil {
		return kinematics.Analysis{}, fmt.Errorf("decode unimanual of %s: %w", a.TrialID, err)
	}
	return a, nil
}
