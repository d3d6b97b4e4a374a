package kinematics

import (
	"fmt"
	"time"
)

// Cut returns a new trial that starts at frame start of t. The first kept
// sample gets speed 0 and StartTime moves forward by start/fs. t is not
// modified. Role and events of the old trial no longer apply.
func Cut(t Trial, start int) (Trial, error) {
	if err := t.Validate(); err != nil {
		return Trial{}, err
	}
	if start < 0 || start > t.Len()-2 {
		return Trial{}, fmt.Errorf("%w: cut at %d leaves fewer than 2 of %d samples",
			ErrInsufficientData, start, t.Len())
	}
	out := t
	out.Left = append([]Sample(nil), t.Left[start:]...)
	out.Right = append([]Sample(nil), t.Right[start:]...)
	out.Left[0].Speed = 0
	out.Right[0].Speed = 0
	if !t.StartTime.IsZero() {
		out.StartTime = t.StartTime.Add(time.Duration(start) * time.Second / time.Duration(t.SampleRate))
	}
	return out, nil
}

// ToLabFrame converts a raw tracker reading into the lab frame used by the
// analysis. The tracker's z axis points down, so z is negated. Apply it once,
// where samples enter the system.
func ToLabFrame(raw Sample) Sample {
	raw.Z = -raw.Z
	return raw
}

// MirrorX returns a copy of samples with the x channel negated.
func MirrorX(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	for i, s := range samples {
		s.X = -s.X
		out[i] = s
	}
	return out
}

// Backfill inserts linearly interpolated samples for dropped frames.
// frames holds the tracker frame number of each entry in samples and must be
// strictly increasing. The result has one sample per frame from frames[0] to
// the last frame, with speeds recomputed from the positions.
func Backfill(samples []Sample, frames []int, sampleRate int) ([]Sample, error) {
	if len(samples) != len(frames) {
		return nil, fmt.Errorf("%w: %d samples but %d frame numbers", ErrInsufficientData, len(samples), len(frames))
	}
	if len(samples) == 0 {
		return nil, nil
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] <= frames[i-1] {
			return nil, fmt.Errorf("frame numbers not increasing at %d: %d after %d", i, frames[i], frames[i-1])
		}
	}

	out := make([]Sample, 0, frames[len(frames)-1]-frames[0]+1)
	out = append(out, samples[0])
	for i := 1; i < len(samples); i++ {
		gap := frames[i] - frames[i-1]
		a, b := samples[i-1], samples[i]
		for k := 1; k < gap; k++ {
			f := float64(k) / float64(gap)
			out = append(out, Sample{
				X: a.X + (b.X-a.X)*f,
				Y: a.Y + (b.Y-a.Y)*f,
				Z: a.Z + (b.Z-a.Z)*f,
			})
		}
		out = append(out, b)
	}
	return FillSpeeds(out, sampleRate), nil
}
