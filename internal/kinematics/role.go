package kinematics

import (
	"fmt"
	"math"
)

// Classifier decides which hand opened the box and which pressed the trigger.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a Classifier using th.
func NewClassifier(th Thresholds) Classifier {
	return Classifier{Thresholds: th}
}

// RoleFeatures are the intermediate quantities behind a role decision.
type RoleFeatures struct {
	LeftUsage       float64 `json:"left_usage"`
	RightUsage      float64 `json:"right_usage"`
	MSEBothHands    float64 `json:"mse_both_hands"`
	LeftButtonDist  float64 `json:"left_button_dist"`
	RightButtonDist float64 `json:"right_button_dist"`
	SwitchCount     int     `json:"switch_count"`
}

// Classify returns the role code for a pair of hand logs.
func (c Classifier) Classify(left, right []Sample) (Role, error) {
	role, _, err := c.ClassifyWithFeatures(left, right)
	return role, err
}

// ClassifyWithFeatures is Classify that also reports the features used.
// When a hand is unused the later features are left at zero.
func (c Classifier) ClassifyWithFeatures(left, right []Sample) (Role, RoleFeatures, error) {
	var f RoleFeatures
	if len(left) < 2 || len(right) < 2 {
		return 0, f, fmt.Errorf("%w: classification needs at least 2 samples per hand (left=%d right=%d)",
			ErrInsufficientData, len(left), len(right))
	}
	if len(left) != len(right) {
		return 0, f, fmt.Errorf("%w: hand logs differ in length (left=%d right=%d)",
			ErrInsufficientData, len(left), len(right))
	}
	th := c.Thresholds

	f.LeftUsage = c.usageCounter(left)
	f.RightUsage = c.usageCounter(right)
	if f.LeftUsage <= 0 {
		return RoleLeftUnused, f, nil
	}
	if f.RightUsage <= 0 {
		return RoleRightUnused, f, nil
	}

	f.MSEBothHands = mseBothHands(left, right)
	f.LeftButtonDist = buttonDistance(left[len(left)-1], th.PositionButton, true)
	f.RightButtonDist = buttonDistance(right[len(right)-1], th.PositionButton, false)
	f.SwitchCount = c.switchCounter(left, right)

	leftCloser := f.LeftButtonDist < f.RightButtonDist
	switch {
	case f.MSEBothHands < th.ThresholdBothHands:
		if leftCloser {
			return RoleBothLeftPressed, f, nil
		}
		return RoleBothRightPressed, f, nil
	case f.SwitchCount > th.ThresholdChangedHandsMeas:
		if leftCloser {
			return RoleSwitchedLeftPressed, f, nil
		}
		return RoleSwitchedRightPressed, f, nil
	case leftCloser:
		return RoleRightBox, f, nil
	default:
		return RoleLeftBox, f, nil
	}
}

// usageCounter scores how much a hand moved away from its start. It starts at
// 7N/8, loses one per sample inside the rest envelope and gains N/6 per sample
// clearly away from the start. A result ≤ 0 means the hand was not used.
func (c Classifier) usageCounter(s []Sample) float64 {
	th := c.Thresholds
	n := float64(len(s))
	counter := 7 * n / 8
	start := s[0]
	for i := len(s) - 1; i >= 0; i-- {
		dz := math.Abs(s[i].Z - start.Z)
		dy := math.Abs(s[i].Y - start.Y)
		switch {
		case dz < th.MaxHeightNeeded && dy < th.MaxLengthNeeded:
			counter--
		case dz > th.MinHeightNeeded || dy > th.MinLengthNeeded:
			counter += n / 6
		}
	}
	return counter
}

// mseBothHands is the mean squared distance between the hands over the y and
// z channels, normalised by 2N.
func mseBothHands(left, right []Sample) float64 {
	var sum float64
	for i := range left {
		dy := left[i].Y - right[i].Y
		dz := left[i].Z - right[i].Z
		sum += dy*dy + dz*dz
	}
	return sum / float64(2*len(left))
}

// buttonDistance is the mean squared distance of a final position to the
// button. The left sensor's x axis is mirrored relative to the lab frame, so
// its x is negated before comparison.
func buttonDistance(s Sample, button [3]float64, mirrorX bool) float64 {
	x := s.X
	if mirrorX {
		x = -x
	}
	dx := x - button[0]
	dy := s.Y - button[1]
	dz := s.Z - button[2]
	return (dx*dx + dy*dy + dz*dz) / 3
}

// switchCounter counts samples in the second half of the trial where both
// hands are raised above the box height and moved forward from their own
// start, which happens when one hand takes over from the other.
func (c Classifier) switchCounter(left, right []Sample) int {
	th := c.Thresholds
	l0, r0 := left[0], right[0]
	count := 0
	for i := len(left) / 2; i < len(left); i++ {
		leftUp := left[i].Z-l0.Z > th.HeightBox && math.Abs(left[i].Y-l0.Y) > th.MinLengthNeeded
		rightUp := right[i].Z-r0.Z > th.HeightBox && math.Abs(right[i].Y-r0.Y) > th.MinLengthNeeded
		if leftUp && rightUp {
			count++
		}
	}
	return count
}
