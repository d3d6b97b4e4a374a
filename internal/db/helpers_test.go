package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSession(t *testing.T, db *DB, participant string) Session {
	t.Helper()
	s := Session{Participant: participant}
	if err := db.CreateSession(context.Background(), &s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return s
}

// testTrial builds a short two-hand trial whose right hand moves along y.
func testTrial(id string, frames int) kinematics.Trial {
	left := make([]kinematics.Sample, frames)
	right := make([]kinematics.Sample, frames)
	for i := range frames {
		left[i] = kinematics.Sample{X: -20, Y: 0, Z: 0}
		right[i] = kinematics.Sample{X: 20, Y: float64(i), Z: 1}
	}
	return kinematics.Trial{
		ID:         id,
		Left:       kinematics.FillSpeeds(left, 120),
		Right:      kinematics.FillSpeeds(right, 120),
		StartTime:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		SampleRate: 120,
		Score:      -1,
	}
}
