package testutil

import (
	"time"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// SampleRate is the rate of every fixture trial.
const SampleRate = 120

// Fixture anchor frames of the box-then-trigger trial built by BoxTrial.
const (
	BoxReachStart   = 15
	BoxReachEnd     = 75
	BoxLiftStart    = 70
	BoxLiftEnd      = 140 // lid at maximum height
	TriggerStart    = 150
	TriggerEnd      = 200 // button pressed, last frame
	BoxTrialSamples = TriggerEnd + 1
)

// Button is the fixture trigger-button position, equal to the default
// position_button.
var Button = [3]float64{30, 40, 5}

// Epoch is the start time given to fixture trials.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// MinJerk is the normalised minimum-jerk position profile: 0 at tau ≤ 0,
// 1 at tau ≥ 1, with zero velocity and acceleration at both ends.
func MinJerk(tau float64) float64 {
	switch {
	case tau <= 0:
		return 0
	case tau >= 1:
		return 1
	}
	t3 := tau * tau * tau
	return t3 * (10 - 15*tau + 6*tau*tau)
}

// Segment is one minimum-jerk sub-movement from frame Start to frame End that
// displaces the hand by Delta (cm).
type Segment struct {
	Start, End int
	Delta      [3]float64
}

// Hand returns n samples starting at origin and moved by the superposition
// of segs. Speeds are filled in at SampleRate.
func Hand(n int, origin [3]float64, segs ...Segment) []kinematics.Sample {
	out := make([]kinematics.Sample, n)
	for i := range out {
		p := origin
		for _, s := range segs {
			f := MinJerk(float64(i-s.Start) / float64(s.End-s.Start))
			for k := range p {
				p[k] += s.Delta[k] * f
			}
		}
		out[i] = kinematics.Sample{X: p[0], Y: p[1], Z: p[2]}
	}
	return kinematics.FillSpeeds(out, SampleRate)
}

// Still returns n samples resting at origin.
func Still(n int, origin [3]float64) []kinematics.Sample {
	return Hand(n, origin)
}

// BoxHand is the box-opening movement: a forward reach followed by a lid
// lift that overlaps its tail, ending still at the highest point.
func BoxHand(origin [3]float64) []kinematics.Sample {
	return Hand(BoxTrialSamples, origin,
		Segment{Start: BoxReachStart, End: BoxReachEnd, Delta: [3]float64{0, 25, 0}},
		Segment{Start: BoxLiftStart, End: BoxLiftEnd, Delta: [3]float64{0, 0, 20}},
	)
}

// TriggerHand rests at origin and then moves onto the button. x is given
// in the hand's own sensor frame, so a left hand reaching the button ends at
// -Button[0].
func TriggerHand(origin [3]float64, left bool) []kinematics.Sample {
	target := Button
	if left {
		target[0] = -target[0]
	}
	delta := [3]float64{target[0] - origin[0], target[1] - origin[1], target[2] - origin[2]}
	return Hand(BoxTrialSamples, origin, Segment{Start: TriggerStart, End: TriggerEnd, Delta: delta})
}

// BoxTrial is a well-formed trial with the left hand opening the box and the
// right hand pressing the button at the last frame.
func BoxTrial(id string, score int) kinematics.Trial {
	return kinematics.Trial{
		ID:            id,
		Left:          BoxHand([3]float64{-20, 0, 0}),
		Right:         TriggerHand([3]float64{20, 0, 0}, false),
		ButtonPressed: true,
		StartTime:     Epoch,
		SampleRate:    SampleRate,
		Score:         score,
	}
}

// MirroredBoxTrial is BoxTrial with the roles of the hands swapped: the right
// hand opens the box and the left hand presses the button.
func MirroredBoxTrial(id string, score int) kinematics.Trial {
	t := BoxTrial(id, score)
	t.Left = kinematics.MirrorX(TriggerHand([3]float64{20, 0, 0}, false))
	t.Right = kinematics.MirrorX(BoxHand([3]float64{-20, 0, 0}))
	return t
}

// OneHandTrial has a left hand that never moves while the right hand does
// the box movement.
func OneHandTrial(id string, score int) kinematics.Trial {
	return kinematics.Trial{
		ID:         id,
		Left:       Still(BoxTrialSamples, [3]float64{-20, 0, 0}),
		Right:      BoxHand([3]float64{20, 0, 0}),
		StartTime:  Epoch,
		SampleRate: SampleRate,
		Score:      score,
	}
}

// TogetherTrial has both hands moving in step, never more than 1 cm apart in
// depth, with the left hand ending on the button.
func TogetherTrial(id string, score int) kinematics.Trial {
	const n = 160
	return kinematics.Trial{
		ID:            id,
		Left:          Hand(n, [3]float64{-20, 0, 0}, Segment{Start: 20, End: 120, Delta: [3]float64{-10, 40, 5}}),
		Right:         Hand(n, [3]float64{20, 1, 0}, Segment{Start: 20, End: 120, Delta: [3]float64{0, 40, 5}}),
		ButtonPressed: true,
		StartTime:     Epoch,
		SampleRate:    SampleRate,
		Score:         score,
	}
}
