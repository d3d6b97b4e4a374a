package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// argmaxIn returns the index (into data) of the first maximum of data[lo:hi].
// hi is clipped to len(data).
func argmaxIn(data []float64, lo, hi int) (int, error) {
	hi = min(hi, len(data))
	if lo < 0 || lo >= hi {
		return 0, fmt.Errorf("%w: empty window [%d, %d) over %d samples", ErrInsufficientData, lo, hi, len(data))
	}
	return lo + floats.MaxIdx(data[lo:hi]), nil
}

// argminIn returns the index (into data) of the first minimum of data[lo:hi].
// hi is clipped to len(data).
func argminIn(data []float64, lo, hi int) (int, error) {
	hi = min(hi, len(data))
	if lo < 0 || lo >= hi {
		return 0, fmt.Errorf("%w: empty window [%d, %d) over %d samples", ErrInsufficientData, lo, hi, len(data))
	}
	return lo + floats.MinIdx(data[lo:hi]), nil
}

// relativeExtrema returns the indices i where data[i] is strictly greater
// (maxima) or strictly smaller (minima) than every neighbour within order
// samples on each side. Neighbour indices outside the slice are clipped to
// the first or last sample, so the end points are never extrema.
func relativeExtrema(data []float64, order int, maxima bool) []int {
	var out []int
	n := len(data)
	for i := 0; i < n; i++ {
		ok := true
		for j := 1; j <= order && ok; j++ {
			l := max(i-j, 0)
			r := min(i+j, n-1)
			if maxima {
				ok = data[i] > data[l] && data[i] > data[r]
			} else {
				ok = data[i] < data[l] && data[i] < data[r]
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// countExtrema counts local maxima plus local minima of data.
func countExtrema(data []float64, order int) int {
	return len(relativeExtrema(data, order, true)) + len(relativeExtrema(data, order, false))
}

// pathLength sums the 3D distances between consecutive samples of s.
func pathLength(s []Sample) float64 {
	var total float64
	for i := 1; i < len(s); i++ {
		dx := s[i].X - s[i-1].X
		dy := s[i].Y - s[i-1].Y
		dz := s[i].Z - s[i-1].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}
