package kinematics

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Analysis is the outcome of running the pipeline on one trial.
type Analysis struct {
	TrialID  string       `json:"trial_id"`
	Role     Role         `json:"role"`
	Features RoleFeatures `json:"features"`
	Score    int          `json:"score"`
	Events   EventSet     `json:"events"`
	// DetectionError is empty when event detection succeeded. When it is set
	// Events is the zero value and must not be read as frame indices.
	DetectionError string `json:"detection_error,omitempty"`
	// Monotonic flags whether the detected events are ordered; unordered
	// events are kept as detected.
	Monotonic bool      `json:"monotonic"`
	Bimanual  Bimanual  `json:"bimanual"`
	Unimanual Unimanual `json:"unimanual"`
	// Computed is true when the parameter vectors were derived, which needs
	// a trial scored ScoreGood and successful detection.
	Computed bool `json:"computed"`
}

// Detected reports whether event detection succeeded.
func (a Analysis) Detected() bool {
	return a.DetectionError == ""
}

// Pipeline runs smoothing, classification, detection and parameter
// extraction over trials. A Pipeline is immutable after construction and
// safe for concurrent use.
type Pipeline struct {
	thresholds Thresholds
	filter     Filter
	workers    int
}

// NewPipeline validates th and designs the smoothing filter when one is
// enabled. workers bounds AnalyzeAll concurrency; values below 1 mean 1.
func NewPipeline(th Thresholds, workers int) (*Pipeline, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{thresholds: th, workers: max(workers, 1)}
	if th.FilterMode != FilterOff {
		f, err := Butterworth(th.FilterOrder, th.FilterCutoffHz, float64(th.SampleRate))
		if err != nil {
			return nil, err
		}
		p.filter = f
	}
	return p, nil
}

// Thresholds returns the thresholds the pipeline was built with.
func (p *Pipeline) Thresholds() Thresholds {
	return p.thresholds
}

// Analyze runs the full pipeline on one trial. Classification and parameter
// errors are returned; a detection failure is recorded in the Analysis and
// leaves the parameters uncomputed.
func (p *Pipeline) Analyze(t Trial) (Analysis, error) {
	a := Analysis{TrialID: t.ID, Score: t.EffectiveScore()}
	if err := t.Validate(); err != nil {
		return a, fmt.Errorf("trial %s: %w", t.ID, err)
	}
	if t.SampleRate != p.thresholds.SampleRate {
		return a, fmt.Errorf("trial %s: %w: recorded at %d Hz, analysis configured for %d Hz",
			t.ID, ErrConfiguration, t.SampleRate, p.thresholds.SampleRate)
	}

	left, right, err := p.smooth(t)
	if err != nil {
		return a, fmt.Errorf("trial %s: %w", t.ID, err)
	}

	a.Role, a.Features, err = NewClassifier(p.thresholds).ClassifyWithFeatures(left, right)
	if err != nil {
		return a, fmt.Errorf("trial %s: classify: %w", t.ID, err)
	}

	a.Events, err = NewDetector(p.thresholds).Detect(left, right, a.Role, a.Score)
	if err != nil {
		a.DetectionError = err.Error()
		return a, nil
	}
	if a.Score != ScoreGood {
		// Only E1 and E6 are detected for a partial trial.
		a.Monotonic = a.Events.E1 <= a.Events.E6
		return a, nil
	}
	a.Monotonic = a.Events.Monotonic()

	box, trigger, err := Orient(left, right, a.Role)
	if err != nil {
		return a, fmt.Errorf("trial %s: %w", t.ID, err)
	}
	a.Bimanual, a.Unimanual, err = NewCalculator(p.thresholds).Compute(a.Events, trigger, box)
	if err != nil {
		return a, fmt.Errorf("trial %s: parameters: %w", t.ID, err)
	}
	a.Computed = true
	return a, nil
}

func (p *Pipeline) smooth(t Trial) (left, right []Sample, err error) {
	mode := p.thresholds.FilterMode
	if left, err = SmoothLog(t.Left, p.filter, mode, t.SampleRate); err != nil {
		return nil, nil, fmt.Errorf("left hand: %w", err)
	}
	if right, err = SmoothLog(t.Right, p.filter, mode, t.SampleRate); err != nil {
		return nil, nil, fmt.Errorf("right hand: %w", err)
	}
	return left, right, nil
}

// Result pairs an Analysis with the error, if any, from analysing its trial.
type Result struct {
	Analysis Analysis
	Err      error
}

// AnalyzeAll analyses trials concurrently with at most the configured number
// of workers. Results are in input order. A failing trial does not stop the
// batch. Trials not yet started when ctx is cancelled get ctx.Err().
func (p *Pipeline) AnalyzeAll(ctx context.Context, trials []Trial) []Result {
	results := make([]Result, len(trials))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i := range trials {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Analysis: Analysis{TrialID: trials[i].ID}, Err: err}
			continue
		}
		select {
		case <-ctx.Done():
			results[i] = Result{Analysis: Analysis{TrialID: trials[i].ID}, Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			a, err := p.Analyze(trials[i])
			results[i] = Result{Analysis: a, Err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// Failed returns the errors from results, joined, or nil.
func Failed(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
