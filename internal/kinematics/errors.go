package kinematics

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means a trial or a search window is too short for
	// the requested computation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDetectionFailure is matched by every error returned from
	// Detector.Detect. The accompanying EventSet is the zero value and must
	// not be read as events at frame 0.
	ErrDetectionFailure = errors.New("event detection failed")
	// ErrConfiguration means a threshold or rate is missing or non-positive.
	ErrConfiguration = errors.New("invalid analysis configuration")
)

// DetectionError describes why event detection degraded for a trial.
type DetectionError struct {
	Role  Role
	Score int
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("event detection failed (role=%s score=%d): %v", e.Role, e.Score, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDetectionFailure) hold for every DetectionError.
func (e *DetectionError) Is(target error) bool {
	return target == ErrDetectionFailure
}
