package kinematics

import (
	"fmt"
	"time"
)

// ScoreGood is the trial quality score at which the full event set and the
// parameter vectors are computed.
const ScoreGood = 3

// Sample is one tracker reading for one hand at one frame.
type Sample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Speed float64 `json:"speed"` // m/s, 0 at frame 0
}

// Trial is the recorded time series of one attempt at the task.
type Trial struct {
	ID            string    `json:"id"`
	Left          []Sample  `json:"left"`
	Right         []Sample  `json:"right"`
	ButtonPressed bool      `json:"button_pressed"`
	StartTime     time.Time `json:"start_time"` // anchor for the external video clock
	SampleRate    int       `json:"sample_rate"`

	// Score is the manually assigned quality score (0..3); -1 means unset.
	Score int `json:"score"`
	// PredictedScore is an optional externally estimated score, used only
	// when no manual score has been assigned.
	PredictedScore *int `json:"predicted_score,omitempty"`
}

// Len returns the number of frames in the trial.
func (t Trial) Len() int {
	return len(t.Left)
}

// LastIndex is the frame index of the trial end (button press or timeout).
func (t Trial) LastIndex() int {
	return len(t.Left) - 1
}

// EffectiveScore returns the manual score when set, otherwise the predicted
// score, otherwise -1.
func (t Trial) EffectiveScore() int {
	if t.Score >= 0 {
		return t.Score
	}
	if t.PredictedScore != nil {
		return *t.PredictedScore
	}
	return -1
}

// Validate checks the structural invariants of a trial.
func (t Trial) Validate() error {
	if len(t.Left) != len(t.Right) {
		return fmt.Errorf("%w: left has %d samples, right has %d", ErrInsufficientData, len(t.Left), len(t.Right))
	}
	if len(t.Left) < 2 {
		return fmt.Errorf("%w: trial has %d samples", ErrInsufficientData, len(t.Left))
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, t.SampleRate)
	}
	return nil
}

// Role identifies which hand played which part in a trial.
type Role int

const (
	RoleLeftBox              Role = 0 // left opened the box, right pressed
	RoleRightBox             Role = 1 // right opened the box, left pressed
	RoleBothRightPressed     Role = 2 // both hands moved together, right pressed
	RoleBothLeftPressed      Role = 3 // both hands moved together, left pressed
	RoleLeftUnused           Role = 4
	RoleRightUnused          Role = 5
	RoleSwitchedRightPressed Role = 6 // hands switched mid-trial, right pressed
	RoleSwitchedLeftPressed  Role = 7 // hands switched mid-trial, left pressed
)

var roleNames = [...]string{
	"left_box",
	"right_box",
	"both_right_pressed",
	"both_left_pressed",
	"left_unused",
	"right_unused",
	"switched_right_pressed",
	"switched_left_pressed",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the eight defined role codes.
func (r Role) Valid() bool {
	return r >= RoleLeftBox && r <= RoleSwitchedLeftPressed
}

// Mirror returns the role obtained by swapping the hands: 0↔1, 2↔3, 4↔5, 6↔7.
func (r Role) Mirror() Role {
	if !r.Valid() {
		return r
	}
	return r ^ 1
}

// OneHanded reports whether one of the hands was not used at all.
func (r Role) OneHanded() bool {
	return r == RoleLeftUnused || r == RoleRightUnused
}

// ParseRole parses a role token produced by Role.String.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// EventSet holds the six event frame indices of a trial.
//
//	E1 box-hand movement onset
//	E2 start of the box-opening sub-movement
//	E3 end of box opening (peak lid height)
//	E4 trigger-hand anticipation onset
//	E5 trigger-hand movement-to-trigger onset (may equal E4)
//	E6 trial end
type EventSet struct {
	E1 int `json:"e1"`
	E2 int `json:"e2"`
	E3 int `json:"e3"`
	E4 int `json:"e4"`
	E5 int `json:"e5"`
	E6 int `json:"e6"`
}

// Slice returns the events in order.
func (e EventSet) Slice() [6]int {
	return [6]int{e.E1, e.E2, e.E3, e.E4, e.E5, e.E6}
}

// IsZero reports whether every event is at frame 0.
func (e EventSet) IsZero() bool {
	return e == EventSet{}
}

// Monotonic reports whether E1 ≤ E2 ≤ E3 and E4 ≤ E5 ≤ E6. Violations are
// flagged to callers; they are not corrected.
func (e EventSet) Monotonic() bool {
	return e.E1 <= e.E2 && e.E2 <= e.E3 && e.E4 <= e.E5 && e.E5 <= e.E6
}

// Bimanual holds the four bimanual timing parameters in seconds.
type Bimanual struct {
	TotalTime           float64 `json:"total_time"`
	TemporalCoupling    float64 `json:"temporal_coupling"`
	MovementOverlap     float64 `json:"movement_overlap"`
	GoalSynchronization float64 `json:"goal_synchronization"`
}

// BimanualNames lists the Bimanual fields in Values order.
var BimanualNames = []string{
	"total_time",
	"temporal_coupling",
	"movement_overlap",
	"goal_synchronization",
}

// Values returns the parameters in BimanualNames order.
func (b Bimanual) Values() []float64 {
	return []float64{b.TotalTime, b.TemporalCoupling, b.MovementOverlap, b.GoalSynchronization}
}

// Unimanual holds the ten per-hand parameters. Times are seconds, path
// lengths centimetres, smoothness counts of local speed extrema.
type Unimanual struct {
	BoxTotalTime        float64 `json:"box_total_time"`
	BoxPhase1Time       float64 `json:"box_phase1_time"`
	BoxPhase2Time       float64 `json:"box_phase2_time"`
	TriggerTime         float64 `json:"trigger_time"`
	BoxSmoothness       float64 `json:"box_smoothness"`
	TriggerSmoothness   float64 `json:"trigger_smoothness"`
	BoxPathLength       float64 `json:"box_path_length"`
	BoxPhase1PathLength float64 `json:"box_phase1_path_length"`
	BoxPhase2PathLength float64 `json:"box_phase2_path_length"`
	TriggerPathLength   float64 `json:"trigger_path_length"`
}

// UnimanualNames lists the Unimanual fields in Values order.
var UnimanualNames = []string{
	"box_total_time",
	"box_phase1_time",
	"box_phase2_time",
	"trigger_time",
	"box_smoothness",
	"trigger_smoothness",
	"box_path_length",
	"box_phase1_path_length",
	"box_phase2_path_length",
	"trigger_path_length",
}

// Values returns the parameters in UnimanualNames order.
func (u Unimanual) Values() []float64 {
	return []float64{
		u.BoxTotalTime, u.BoxPhase1Time, u.BoxPhase2Time, u.TriggerTime,
		u.BoxSmoothness, u.TriggerSmoothness,
		u.BoxPathLength, u.BoxPhase1PathLength, u.BoxPhase2PathLength, u.TriggerPathLength,
	}
}
