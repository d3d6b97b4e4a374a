package kinematics

import "fmt"

// Calculator derives the bimanual and unimanual parameters from an event set.
type Calculator struct {
	SampleRate   int
	ExtremaOrder int
}

// NewCalculator returns a Calculator configured from th.
func NewCalculator(th Thresholds) Calculator {
	return Calculator{SampleRate: th.SampleRate, ExtremaOrder: th.ExtremaOrder}
}

// Compute returns the parameter vectors for ev over the trigger and box hand
// logs. It is pure; the same input always gives the same output.
func (c Calculator) Compute(ev EventSet, trigger, box []Sample) (Bimanual, Unimanual, error) {
	if c.SampleRate <= 0 {
		return Bimanual{}, Unimanual{}, fmt.Errorf("%w: sample rate %d", ErrConfiguration, c.SampleRate)
	}
	if c.ExtremaOrder < 1 {
		return Bimanual{}, Unimanual{}, fmt.Errorf("%w: extrema order %d", ErrConfiguration, c.ExtremaOrder)
	}
	if len(trigger) != len(box) {
		return Bimanual{}, Unimanual{}, fmt.Errorf("%w: trigger has %d samples, box has %d",
			ErrInsufficientData, len(trigger), len(box))
	}
	for i, e := range ev.Slice() {
		if e < 0 || e >= len(box) {
			return Bimanual{}, Unimanual{}, fmt.Errorf("%w: event E%d=%d outside %d samples",
				ErrInsufficientData, i+1, e, len(box))
		}
	}

	fs := float64(c.SampleRate)
	sec := func(from, to int) float64 { return float64(to-from) / fs }

	bi := Bimanual{
		TotalTime:           sec(min(ev.E1, ev.E4), ev.E6),
		TemporalCoupling:    sec(ev.E2, ev.E4),
		MovementOverlap:     sec(ev.E4, ev.E3),
		GoalSynchronization: sec(ev.E3, ev.E6),
	}

	uni := Unimanual{
		BoxTotalTime:        sec(ev.E1, ev.E3),
		BoxPhase1Time:       sec(ev.E1, ev.E2),
		BoxPhase2Time:       sec(ev.E2, ev.E3),
		TriggerTime:         sec(ev.E4, ev.E6),
		BoxSmoothness:       float64(countExtrema(speeds(window(box, ev.E1, ev.E3)), c.ExtremaOrder)),
		TriggerSmoothness:   float64(countExtrema(speeds(window(trigger, ev.E1, ev.E3)), c.ExtremaOrder)),
		BoxPathLength:       pathLength(window(box, ev.E1, ev.E3)),
		BoxPhase1PathLength: pathLength(window(box, ev.E1, ev.E2)),
		BoxPhase2PathLength: pathLength(window(box, ev.E2, ev.E3)),
		TriggerPathLength:   pathLength(window(trigger, ev.E4, ev.E6)),
	}
	return bi, uni, nil
}

// window returns s[from:to], or nil when the range is empty or reversed.
// Non-monotonic event sets therefore yield zero smoothness and path length
// for the affected phase rather than an error.
func window(s []Sample, from, to int) []Sample {
	if to <= from {
		return nil
	}
	return s[from:to]
}
