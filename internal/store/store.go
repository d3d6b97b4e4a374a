// Package store ties persistence to analysis: every trial written through a
// Store is analysed and its analysis saved alongside it.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
)

// Store analyses trials with one pipeline and persists them in one database.
type Store struct {
	db       *db.DB
	pipeline *kinematics.Pipeline
}

func New(database *db.DB, pipeline *kinematics.Pipeline) *Store {
	return &Store{db: database, pipeline: pipeline}
}

// DB returns the underlying database.
func (s *Store) DB() *db.DB {
	return s.db
}

// Pipeline returns the analysis pipeline.
func (s *Store) Pipeline() *kinematics.Pipeline {
	return s.pipeline
}

// SaveRecordedTrial stores a freshly recorded trial and its analysis. It
// satisfies acquisition.Sink.
func (s *Store) SaveRecordedTrial(ctx context.Context, sessionID string, t kinematics.Trial) error {
	st, err := s.db.SaveTrial(ctx, sessionID, t)
	if err != nil {
		return err
	}
	a, err := s.analyse(ctx, st.Trial)
	if err != nil {
		return err
	}
	monitoring.Logf("trial %d of session %s: %d frames, role %s, detected=%v",
		st.Index, sessionID, st.Len(), a.Role, a.Detected())
	return nil
}

// Rescore sets the manual score of a trial and recomputes its analysis.
func (s *Store) Rescore(ctx context.Context, trialID string, score int) (kinematics.Analysis, error) {
	if err := s.db.SetScore(ctx, trialID, score); err != nil {
		return kinematics.Analysis{}, err
	}
	return s.Reanalyse(ctx, trialID)
}

// Cut redefines the start of a trial at frame start, replaces the stored
// samples and recomputes the analysis.
func (s *Store) Cut(ctx context.Context, trialID string, start int) (kinematics.Analysis, error) {
	st, err := s.db.Trial(ctx, trialID)
	if err != nil {
		return kinematics.Analysis{}, err
	}
	cut, err := kinematics.Cut(st.Trial, start)
	if err != nil {
		return kinematics.Analysis{}, err
	}
	if err := s.db.ReplaceTrial(ctx, cut); err != nil {
		return kinematics.Analysis{}, err
	}
	return s.analyse(ctx, cut)
}

// Reanalyse runs the pipeline on the stored trial and saves the result.
func (s *Store) Reanalyse(ctx context.Context, trialID string) (kinematics.Analysis, error) {
	st, err := s.db.Trial(ctx, trialID)
	if err != nil {
		return kinematics.Analysis{}, err
	}
	return s.analyse(ctx, st.Trial)
}

// Reprocess re-analyses every trial of a session concurrently and saves the
// results. Trials the pipeline rejects lose their stored analysis and are
// reported in the returned error; the others are still saved.
func (s *Store) Reprocess(ctx context.Context, sessionID string) (int, error) {
	stored, err := s.db.TrialsForSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	trials := make([]kinematics.Trial, len(stored))
	for i, st := range stored {
		trials[i] = st.Trial
	}

	results := s.pipeline.AnalyzeAll(ctx, trials)
	saved := 0
	for i, r := range results {
		if r.Err != nil {
			if ctx.Err() != nil {
				continue
			}
			if err := s.db.DeleteAnalysis(ctx, trials[i].ID); err != nil {
				return saved, err
			}
			continue
		}
		if err := s.db.SaveAnalysis(ctx, r.Analysis); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, kinematics.Failed(results)
}

// Predictor estimates the score of a trial.
type Predictor interface {
	PredictScore(ctx context.Context, t kinematics.Trial) (int, error)
}

// Predict asks p for a score for every trial of the session that has no
// manual score, stores the predictions and re-analyses those trials. It
// stops at the first failure and returns how many trials were updated.
func (s *Store) Predict(ctx context.Context, sessionID string, p Predictor) (int, error) {
	stored, err := s.db.TrialsForSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, st := range stored {
		if st.Score >= 0 {
			continue
		}
		score, err := p.PredictScore(ctx, st.Trial)
		if err != nil {
			return updated, fmt.Errorf("predict trial %s: %w", st.ID, err)
		}
		if err := s.db.SetPredictedScore(ctx, st.ID, &score); err != nil {
			return updated, err
		}
		st.PredictedScore = &score
		if _, err := s.analyse(ctx, st.Trial); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Report gathers what a session export needs.
func (s *Store) Report(ctx context.Context, sessionID string) (db.Session, []kinematics.Analysis, kinematics.Summary, error) {
	sess, err := s.db.Session(ctx, sessionID)
	if err != nil {
		return db.Session{}, nil, kinematics.Summary{}, err
	}
	analyses, err := s.db.AnalysesForSession(ctx, sessionID)
	if err != nil {
		return db.Session{}, nil, kinematics.Summary{}, err
	}
	return sess, analyses, kinematics.Summarize(analyses), nil
}

func (s *Store) analyse(ctx context.Context, t kinematics.Trial) (kinematics.Analysis, error) {
	a, err := s.pipeline.Analyze(t)
	if err != nil {
		err = fmt.Errorf("analyse trial %s: %w", t.ID, err)
		if derr := s.db.DeleteAnalysis(ctx, t.ID); derr != nil {
			return kinematics.Analysis{}, errors.Join(err, derr)
		}
		return kinematics.Analysis{}, err
	}
	if err := s.db.SaveAnalysis(ctx, a); err != nil {
		return kinematics.Analysis{}, err
	}
	return a, nil
}
