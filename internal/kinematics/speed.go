package kinematics

import (
	"math"

	"github.com/banshee-data/bimanual.report/internal/units"
)

// Speed returns the speed in m/s between two consecutive samples at the given
// sample rate. Positions are in cm.
func Speed(cur, prev Sample, sampleRate int) float64 {
	dx := cur.X - prev.X
	dy := cur.Y - prev.Y
	dz := cur.Z - prev.Z
	return math.Sqrt(dx*dx+dy*dy+dz*dz) * float64(sampleRate) / units.CentimetresPerMetre
}

// AppendSample appends s to log with its speed computed causally from the
// last sample already in log. The first sample of a log has speed 0.
func AppendSample(log []Sample, s Sample, sampleRate int) []Sample {
	if len(log) == 0 {
		s.Speed = 0
	} else {
		s.Speed = Speed(s, log[len(log)-1], sampleRate)
	}
	return append(log, s)
}

// FillSpeeds returns a copy of samples with every speed recomputed from the
// positions. Use it after batch smoothing or backfilling, where the previous
// sample of every frame is already known.
func FillSpeeds(samples []Sample, sampleRate int) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	for i := range out {
		if i == 0 {
			out[i].Speed = 0
			continue
		}
		out[i].Speed = Speed(out[i], out[i-1], sampleRate)
	}
	return out
}

// speeds extracts the speed channel.
func speeds(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Speed
	}
	return out
}

// heights extracts the z channel.
func heights(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Z
	}
	return out
}
