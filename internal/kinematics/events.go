package kinematics

import (
	"fmt"
	"math"
)

const (
	// peakWindow is the width of the search window for the first speed peak
	// after onset, and the gap before the second peak's window starts.
	peakWindow = 51
	// secondPeakSpan bounds how far after the first peak the second peak is
	// searched for.
	secondPeakSpan = 1001
	// collapseWindow: when the trigger-hand approach onset lands this close to
	// the box-hand onset it is replaced by the anticipation onset. Kept for
	// compatibility with existing data sets; it has not been validated against
	// hand-labelled events.
	collapseWindow = 60
)

// Detector finds the six kinematic events of a trial.
type Detector struct {
	Thresholds Thresholds
}

// NewDetector returns a Detector using th.
func NewDetector(th Thresholds) Detector {
	return Detector{Thresholds: th}
}

// Orient returns the box-hand and trigger-hand logs for a role. For the
// one-handed roles the trigger log is nil and the box log is the hand that
// was used.
func Orient(left, right []Sample, role Role) (box, trigger []Sample, err error) {
	switch role {
	case RoleLeftBox, RoleBothRightPressed, RoleSwitchedRightPressed:
		return left, right, nil
	case RoleRightBox, RoleBothLeftPressed, RoleSwitchedLeftPressed:
		return right, left, nil
	case RoleLeftUnused:
		return right, nil, nil
	case RoleRightUnused:
		return left, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown role %d", ErrConfiguration, int(role))
}

// Detect computes the events for one trial. E6 is always the last index.
// For a score other than ScoreGood only E1 is computed. Every error is a
// *DetectionError and the returned EventSet is then the zero value.
func (d Detector) Detect(left, right []Sample, role Role, score int) (ev EventSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = EventSet{}
			err = &DetectionError{Role: role, Score: score, Err: fmt.Errorf("%w: %v", ErrInsufficientData, r)}
		}
	}()

	fail := func(cause error) (EventSet, error) {
		return EventSet{}, &DetectionError{Role: role, Score: score, Err: cause}
	}

	if len(left) < 2 || len(left) != len(right) {
		return fail(fmt.Errorf("%w: left=%d right=%d samples", ErrInsufficientData, len(left), len(right)))
	}
	if d.Thresholds.SampleRate <= 0 || d.Thresholds.SpeedThreshold <= 0 {
		return fail(fmt.Errorf("%w: sample rate %d, speed threshold %g",
			ErrConfiguration, d.Thresholds.SampleRate, d.Thresholds.SpeedThreshold))
	}
	box, trigger, err := Orient(left, right, role)
	if err != nil {
		return fail(err)
	}

	ev.E6 = len(left) - 1
	boxSpeed := speeds(box)

	ev.E1, err = d.onset(boxSpeed)
	if err != nil {
		return fail(err)
	}
	if score != ScoreGood {
		return ev, nil
	}
	if trigger == nil {
		return fail(fmt.Errorf("%w: role %s has no trigger hand", ErrInsufficientData, role))
	}

	if ev.E2, err = d.boxOpeningStart(boxSpeed, ev.E1); err != nil {
		return fail(err)
	}
	if ev.E3, err = argmaxIn(heights(box), 1, ev.E6); err != nil {
		return fail(err)
	}

	triggerSpeed := speeds(trigger)
	if ev.E4, err = d.anticipation(trigger, triggerSpeed); err != nil {
		return fail(err)
	}
	ev.E5 = d.approach(triggerSpeed)
	if math.Abs(float64(ev.E5-ev.E1)) < collapseWindow {
		ev.E5 = ev.E4
	}
	return ev, nil
}

// onset returns the first index where speed exceeds the threshold, moved back
// over the rising edge to where the hand was still accelerating from rest.
func (d Detector) onset(speed []float64) (int, error) {
	th := d.Thresholds.SpeedThreshold
	i := 0
	for i < len(speed) && speed[i] <= th {
		i++
	}
	if i == len(speed) {
		return 0, fmt.Errorf("%w: speed never exceeds %g m/s", ErrInsufficientData, th)
	}
	fs := float64(d.Thresholds.SampleRate)
	for i > 0 && speed[i] > 0 && (speed[i]-speed[i-1])*fs >= 0 {
		i--
	}
	return i, nil
}

// boxOpeningStart finds the speed valley between the reach and the lid
// opening sub-movements and returns the index just before it.
func (d Detector) boxOpeningStart(speed []float64, e1 int) (int, error) {
	piek1, err := argmaxIn(speed, e1, e1+peakWindow)
	if err != nil {
		return 0, fmt.Errorf("first speed peak: %w", err)
	}
	piek2, err := argmaxIn(speed, piek1+peakWindow, piek1+secondPeakSpan)
	if err != nil {
		return 0, fmt.Errorf("second speed peak: %w", err)
	}
	valley, err := argminIn(speed, piek1, piek2)
	if err != nil {
		return 0, fmt.Errorf("speed valley: %w", err)
	}
	if valley < 1 {
		return 0, fmt.Errorf("%w: speed valley at frame %d", ErrInsufficientData, valley)
	}
	return valley - 1, nil
}

// anticipation returns the last index before the trigger hand leaves its rest
// envelope, moved back while the hand is already above the speed threshold.
func (d Detector) anticipation(trigger []Sample, speed []float64) (int, error) {
	th := d.Thresholds
	start := trigger[0]
	i := 0
	for i < len(trigger) &&
		math.Abs(trigger[i].Z-start.Z) < th.MaxHeightNeeded &&
		math.Abs(trigger[i].Y-start.Y) < th.MaxLengthNeeded {
		i++
	}
	if i == len(trigger) {
		return 0, fmt.Errorf("%w: trigger hand never leaves its start position", ErrInsufficientData)
	}
	i--
	for i > 0 && speed[i] >= th.SpeedThreshold {
		i--
	}
	return i, nil
}

// approach walks back from the trial end while the trigger hand is at or
// above the speed threshold. A hand already resting on the button at the
// last frame gives the last index.
func (d Detector) approach(speed []float64) int {
	th := d.Thresholds.SpeedThreshold
	i := len(speed) - 1
	for i > 0 && speed[i] >= th {
		i--
	}
	return i
}
