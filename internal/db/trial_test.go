package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

func TestCreateSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := Session{Participant: "P01", Notes: "dominant right", CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, db.CreateSession(ctx, &first))
	assert.NotEmpty(t, first.ID, "ID should be assigned")

	second := Session{ID: "fixed", Participant: "P02", CreatedAt: first.CreatedAt.Add(time.Hour)}
	require.NoError(t, db.CreateSession(ctx, &second))

	dup := Session{ID: "fixed"}
	assert.Error(t, db.CreateSession(ctx, &dup), "duplicate IDs must be rejected")

	sessions, err := db.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "fixed", sessions[0].ID, "newest first")
	assert.Equal(t, "dominant right", sessions[1].Notes)
	assert.True(t, sessions[1].CreatedAt.Equal(first.CreatedAt))

	_, err = db.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTrial_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")

	predicted := 2
	in := testTrial("t1", 12)
	in.ButtonPressed = true
	in.PredictedScore = &predicted

	stored, err := db.SaveTrial(ctx, s.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Index)

	got, err := db.Trial(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.SessionID)
	assert.Equal(t, 1, got.Index)
	if diff := cmp.Diff(in, got.Trial); diff != "" {
		t.Errorf("trial mismatch (-want +got):\n%s", diff)
	}

	sess, err := db.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TrialCount)
}

func TestSaveTrial_AssignsIndexAndID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := createTestSession(t, db, "A")
	b := createTestSession(t, db, "B")

	for i := 0; i < 3; i++ {
		_, err := db.SaveTrial(ctx, a.ID, testTrial("", 5))
		require.NoError(t, err)
	}
	st, err := db.SaveTrial(ctx, b.ID, testTrial("", 5))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Index, "indices are per session")
	assert.NotEmpty(t, st.ID)

	infos, err := db.ListTrials(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, i+1, info.Index)
		assert.Equal(t, 5, info.Frames)
		assert.Equal(t, -1, info.Score)
		assert.Nil(t, info.PredictedScore)
	}

	trials, err := db.TrialsForSession(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Len(t, trials[2].Right, 5)
}

func TestSaveTrial_Rejects(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")

	_, err := db.SaveTrial(ctx, "no-such-session", testTrial("x", 5))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.SaveTrial(ctx, s.ID, testTrial("short", 1))
	assert.ErrorIs(t, err, kinematics.ErrInsufficientData)
}

func TestSetScore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")
	_, err := db.SaveTrial(ctx, s.ID, testTrial("t1", 5))
	require.NoError(t, err)
	require.NoError(t, db.SaveAnalysis(ctx, kinematics.Analysis{TrialID: "t1", Role: kinematics.RoleRightBox}))

	require.NoError(t, db.SetScore(ctx, "t1", 3))
	got, err := db.Trial(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Score)

	_, err = db.Analysis(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound, "rescoring drops the stale analysis")

	assert.ErrorIs(t, db.SetScore(ctx, "t1", 4), ErrInvalidScore)
	assert.ErrorIs(t, db.SetScore(ctx, "t1", -2), ErrInvalidScore)
	assert.ErrorIs(t, db.SetScore(ctx, "missing", 1), ErrNotFound)
}

func TestSetPredictedScore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")
	_, err := db.SaveTrial(ctx, s.ID, testTrial("t1", 5))
	require.NoError(t, err)

	two := 2
	require.NoError(t, db.SetPredictedScore(ctx, "t1", &two))
	got, err := db.Trial(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.PredictedScore)
	assert.Equal(t, 2, *got.PredictedScore)
	assert.Equal(t, 2, got.EffectiveScore())

	require.NoError(t, db.SetPredictedScore(ctx, "t1", nil))
	got, err = db.Trial(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got.PredictedScore)

	bad := 4
	assert.ErrorIs(t, db.SetPredictedScore(ctx, "t1", &bad), ErrInvalidScore)
	assert.ErrorIs(t, db.SetPredictedScore(ctx, "missing", &two), ErrNotFound)
}

func TestReplaceTrial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")
	orig := testTrial("t1", 20)
	_, err := db.SaveTrial(ctx, s.ID, orig)
	require.NoError(t, err)
	require.NoError(t, db.SaveAnalysis(ctx, kinematics.Analysis{TrialID: "t1"}))

	cut, err := kinematics.Cut(orig, 5)
	require.NoError(t, err)
	require.NoError(t, db.ReplaceTrial(ctx, cut))

	got, err := db.Trial(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 15, got.Len())
	assert.True(t, got.StartTime.Equal(cut.StartTime))
	assert.Equal(t, 1, got.Index, "index is kept")

	_, err = db.Analysis(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	missing := testTrial("nope", 5)
	assert.True(t, errors.Is(db.ReplaceTrial(ctx, missing), ErrNotFound))
}

func TestDeleteSessionCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, "P01")
	_, err := db.SaveTrial(ctx, s.ID, testTrial("t1", 5))
	require.NoError(t, err)
	require.NoError(t, db.SaveAnalysis(ctx, kinematics.Analysis{TrialID: "t1"}))

	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, s.ID)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trial_analysis`).Scan(&n))
	assert.Zero(t, n, "foreign keys cascade to analyses")
}
