package kinematics

import (
	"github.com/montanaflynn/stats"
)

// ParamStats summarises one parameter across trials.
type ParamStats struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"` // sample standard deviation, 0 for fewer than 2 trials
	Median float64 `json:"median"`
}

// Summary holds the cross-trial statistics for a session.
type Summary struct {
	Trials    int          `json:"trials"`   // analyses considered
	Computed  int          `json:"computed"` // analyses with parameters
	Bimanual  []ParamStats `json:"bimanual"`
	Unimanual []ParamStats `json:"unimanual"`
}

// Summarize averages the parameter vectors of every computed analysis.
// Analyses without parameters are counted but not averaged.
func Summarize(analyses []Analysis) Summary {
	s := Summary{Trials: len(analyses)}
	bi := make([][]float64, len(BimanualNames))
	uni := make([][]float64, len(UnimanualNames))
	for _, a := range analyses {
		if !a.Computed {
			continue
		}
		s.Computed++
		for i, v := range a.Bimanual.Values() {
			bi[i] = append(bi[i], v)
		}
		for i, v := range a.Unimanual.Values() {
			uni[i] = append(uni[i], v)
		}
	}
	s.Bimanual = describeAll(BimanualNames, bi)
	s.Unimanual = describeAll(UnimanualNames, uni)
	return s
}

func describeAll(names []string, columns [][]float64) []ParamStats {
	out := make([]ParamStats, len(names))
	for i, name := range names {
		out[i] = describe(name, columns[i])
	}
	return out
}

func describe(name string, values []float64) ParamStats {
	ps := ParamStats{Name: name, Count: len(values)}
	if len(values) == 0 {
		return ps
	}
	data := stats.Float64Data(values)
	// Errors from stats only signal empty input, handled above.
	ps.Mean, _ = stats.Mean(data)
	ps.Median, _ = stats.Median(data)
	if len(values) > 1 {
		ps.SD, _ = stats.StandardDeviationSample(data)
	}
	return ps
}
