package kinematics

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// FilterMode selects which channel SmoothLog filters.
type FilterMode int

const (
	FilterOff      FilterMode = iota
	FilterSpeed               // filter the speed channel directly
	FilterPosition            // filter x, y, z and recompute speed
)

func (m FilterMode) String() string {
	switch m {
	case FilterOff:
		return "off"
	case FilterSpeed:
		return "speed"
	case FilterPosition:
		return "position"
	default:
		return fmt.Sprintf("filter_mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name, as written in the tuning file.
func (m FilterMode) MarshalText() ([]byte, error) {
	if m < FilterOff || m > FilterPosition {
		return nil, fmt.Errorf("%w: unknown filter mode %d", ErrConfiguration, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names ParseFilterMode does.
func (m *FilterMode) UnmarshalText(b []byte) error {
	mode, err := ParseFilterMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseFilterMode parses "off", "speed" or "position".
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "", "off":
		return FilterOff, nil
	case "speed":
		return FilterSpeed, nil
	case "position":
		return FilterPosition, nil
	}
	return FilterOff, fmt.Errorf("%w: unknown filter mode %q", ErrConfiguration, s)
}

// Filter is an IIR filter in transfer-function form, a[0] == 1.
type Filter struct {
	B []float64
	A []float64
}

// Butterworth designs a digital low-pass Butterworth filter of the given
// order using the bilinear transform with a pre-warped cutoff. The filter has
// unity gain at DC.
func Butterworth(order int, cutoffHz, sampleRate float64) (Filter, error) {
	if order < 1 {
		return Filter{}, fmt.Errorf("%w: filter order %d", ErrConfiguration, order)
	}
	if sampleRate <= 0 || cutoffHz <= 0 || cutoffHz >= sampleRate/2 {
		return Filter{}, fmt.Errorf("%w: cutoff %g Hz at sample rate %g Hz", ErrConfiguration, cutoffHz, sampleRate)
	}

	fs2 := 2 * sampleRate
	warped := fs2 * math.Tan(math.Pi*cutoffHz/sampleRate)

	poles := make([]complex128, order)
	zeros := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		p := complex(warped, 0) * cmplx.Exp(complex(0, theta))
		poles[k] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
		zeros[k] = -1
	}

	a := realPoly(poles)
	b := realPoly(zeros)

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	gain := sumA / sumB
	for i := range b {
		b[i] *= gain
	}
	return Filter{B: b, A: a}, nil
}

// realPoly expands Π(z - r) and returns the real parts of the coefficients,
// highest power first.
func realPoly(roots []complex128) []float64 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		for i := range next {
			if i < len(c) {
				next[i] += c[i]
			}
			if i > 0 {
				next[i] -= r * c[i-1]
			}
		}
		c = next
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}

// PadLen is the number of samples of odd extension added at each end by
// FiltFilt. Inputs must be strictly longer than this.
func (f Filter) PadLen() int {
	return 3 * max(len(f.A), len(f.B))
}

// steadyState returns the initial conditions of the transposed direct form II
// state for a unit step input.
func (f Filter) steadyState() ([]float64, error) {
	n := len(f.A) - 1
	if n < 1 {
		return nil, nil
	}
	// I - companion(a)^T
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
		m.Set(i, 0, m.At(i, 0)+f.A[i+1])
		if i+1 < n {
			m.Set(i, i+1, -1)
		}
	}
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, f.B[i+1]-f.A[i+1]*f.B[0])
	}
	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("solve filter initial conditions: %w", err)
	}
	return zi.RawVector().Data, nil
}

// lfilter runs the filter over x with the given initial state (scaled copy,
// not mutated).
func (f Filter) lfilter(x []float64, zi []float64, scale float64) []float64 {
	n := len(f.A) - 1
	z := make([]float64, n)
	for i := range z {
		z[i] = zi[i] * scale
	}
	y := make([]float64, len(x))
	for k, xk := range x {
		yk := f.B[0]*xk + zOr0(z, 0)
		for i := 0; i < n-1; i++ {
			z[i] = f.B[i+1]*xk + z[i+1] - f.A[i+1]*yk
		}
		if n > 0 {
			z[n-1] = f.B[n]*xk - f.A[n]*yk
		}
		y[k] = yk
	}
	return y
}

func zOr0(z []float64, i int) float64 {
	if i < len(z) {
		return z[i]
	}
	return 0
}

// FiltFilt applies the filter forward and backward so the output has zero
// phase lag and the same length as x. The ends are padded by odd extension.
// Inputs no longer than PadLen fail with ErrInsufficientData.
func (f Filter) FiltFilt(x []float64) ([]float64, error) {
	if len(f.A) == 0 || len(f.A) != len(f.B) || f.A[0] != 1 {
		return nil, fmt.Errorf("%w: malformed filter coefficients", ErrConfiguration)
	}
	pad := f.PadLen()
	if len(x) <= pad {
		return nil, fmt.Errorf("%w: filtfilt needs more than %d samples, got %d", ErrInsufficientData, pad, len(x))
	}

	zi, err := f.steadyState()
	if err != nil {
		return nil, err
	}

	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-pad-1; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := f.lfilter(ext, zi, ext[0])
	reverse(y)
	y = f.lfilter(y, zi, y[0])
	reverse(y)

	out := make([]float64, n)
	copy(out, y[pad:pad+n])
	return out, nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// SmoothLog returns a smoothed copy of one hand's samples. FilterSpeed
// filters the speed channel only; FilterPosition filters each position
// channel and recomputes speed from the filtered positions. FilterOff
// returns an unmodified copy.
func SmoothLog(samples []Sample, f Filter, mode FilterMode, sampleRate int) ([]Sample, error) {
	out := make([]Sample, len(samples))
	copy(out, samples)

	switch mode {
	case FilterOff:
		return out, nil
	case FilterSpeed:
		sp, err := f.FiltFilt(speeds(samples))
		if err != nil {
			return nil, fmt.Errorf("smooth speed: %w", err)
		}
		for i := range out {
			out[i].Speed = sp[i]
		}
		return out, nil
	case FilterPosition:
		xs := make([]float64, len(samples))
		ys := make([]float64, len(samples))
		zs := make([]float64, len(samples))
		for i, s := range samples {
			xs[i], ys[i], zs[i] = s.X, s.Y, s.Z
		}
		channels := [][]float64{xs, ys, zs}
		for c, ch := range channels {
			filtered, err := f.FiltFilt(ch)
			if err != nil {
				return nil, fmt.Errorf("smooth position channel %d: %w", c, err)
			}
			channels[c] = filtered
		}
		for i := range out {
			out[i].X, out[i].Y, out[i].Z = channels[0][i], channels[1][i], channels[2][i]
		}
		return FillSpeeds(out, sampleRate), nil
	}
	return nil, fmt.Errorf("%w: unknown filter mode %d", ErrConfiguration, int(mode))
}
