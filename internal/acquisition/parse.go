package acquisition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// ErrMalformedLine is returned for tracker lines that cannot be parsed.
var ErrMalformedLine = errors.New("malformed tracker line")

// Sensor numbers as reported by the tracker.
const (
	SensorLeft  = 1
	SensorRight = 2
)

// LineKind identifies a tracker line.
type LineKind int

const (
	LineSample LineKind = iota // S<sensor> <x> <y> <z>
	LineButton                 // B
	LineFrame                  // F<frame>
)

// Line is one parsed tracker line. Sample positions are raw tracker
// coordinates; ToLabFrame has not been applied.
type Line struct {
	Kind   LineKind
	Sensor int
	Sample kinematics.Sample
	Frame  int
}

// ParseLine parses one line of the tracker's ASCII stream.
func ParseLine(s string) (Line, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Line{}, fmt.Errorf("%w: empty", ErrMalformedLine)
	}

	switch s[0] {
	case 'B', 'b':
		if len(s) != 1 {
			return Line{}, fmt.Errorf("%w: %q", ErrMalformedLine, s)
		}
		return Line{Kind: LineButton}, nil

	case 'F', 'f':
		n, err := strconv.Atoi(strings.TrimSpace(s[1:]))
		if err != nil || n < 0 {
			return Line{}, fmt.Errorf("%w: bad frame counter %q", ErrMalformedLine, s)
		}
		return Line{Kind: LineFrame, Frame: n}, nil

	case 'S', 's':
		fields := strings.Fields(s[1:])
		if len(fields) != 4 {
			return Line{}, fmt.Errorf("%w: want sensor and 3 coordinates in %q", ErrMalformedLine, s)
		}
		sensor, err := strconv.Atoi(fields[0])
		if err != nil || (sensor != SensorLeft && sensor != SensorRight) {
			return Line{}, fmt.Errorf("%w: unknown sensor in %q", ErrMalformedLine, s)
		}
		var xyz [3]float64
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Line{}, fmt.Errorf("%w: coordinate %q: %v", ErrMalformedLine, f, err)
			}
			xyz[i] = v
		}
		return Line{
			Kind:   LineSample,
			Sensor: sensor,
			Sample: kinematics.Sample{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		}, nil
	}
	return Line{}, fmt.Errorf("%w: %q", ErrMalformedLine, s)
}
