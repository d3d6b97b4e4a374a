package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
	"github.com/banshee-data/bimanual.report/internal/timeutil"
)

// ErrBusy is returned by Start while a trial is being recorded.
var ErrBusy = errors.New("a trial is already being recorded")

// Sink receives every finished trial.
type Sink interface {
	SaveRecordedTrial(ctx context.Context, sessionID string, t kinematics.Trial) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sessionID string, t kinematics.Trial) error

func (f SinkFunc) SaveRecordedTrial(ctx context.Context, sessionID string, t kinematics.Trial) error {
	return f(ctx, sessionID, t)
}

// Config controls trial recording.
type Config struct {
	SampleRate int
	// Timeout ends a trial that sees no button press.
	Timeout time.Duration
	// CheckInterval is how often the timeout is checked when no frames
	// arrive. Defaults to 100ms.
	CheckInterval time.Duration
	Clock         timeutil.Clock
	// NewID returns trial ids; defaults to random UUIDs.
	NewID func() string
}

// Status describes the recorder at one instant.
type Status struct {
	Recording bool          `json:"recording"`
	SessionID string        `json:"session_id,omitempty"`
	TrialID   string        `json:"trial_id,omitempty"`
	Frames    int           `json:"frames"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Skipped   int           `json:"skipped_lines"`
}

// Recorder turns the tracker line stream into trials. Frames are only kept
// between Start and the button press or timeout that ends the trial.
type Recorder struct {
	cfg  Config
	sink Sink

	mu        sync.Mutex
	recording bool
	sessionID string
	trialID   string
	started   time.Time
	left      []kinematics.Sample
	right     []kinematics.Sample
	frames    []int
	counted   bool // frames carry tracker frame numbers
	nextFrame int
	pending   [2]*kinematics.Sample
	skipped   int
}

// NewRecorder returns a Recorder delivering trials to sink.
func NewRecorder(cfg Config, sink Sink) (*Recorder, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", kinematics.ErrConfiguration, cfg.SampleRate)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: trial timeout %s", kinematics.ErrConfiguration, cfg.Timeout)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 100 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Recorder{cfg: cfg, sink: sink}, nil
}

// Start begins recording a trial for sessionID and returns its id.
func (r *Recorder) Start(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return "", ErrBusy
	}
	r.recording = true
	r.sessionID = sessionID
	r.trialID = r.cfg.NewID()
	r.started = r.cfg.Clock.Now()
	r.left, r.right, r.frames = nil, nil, nil
	r.counted = false
	r.nextFrame = 0
	r.pending = [2]*kinematics.Sample{}
	r.skipped = 0
	monitoring.Logf("recording trial %s for session %s", r.trialID, sessionID)
	return r.trialID, nil
}

// Status reports the current recording state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Recording: r.recording, Skipped: r.skipped}
	if r.recording {
		st.SessionID = r.sessionID
		st.TrialID = r.trialID
		st.Frames = len(r.left)
		st.Elapsed = r.cfg.Clock.Since(r.started)
	}
	return st
}

// Run consumes tracker lines until ctx is done or lines is closed. A trial
// still recording when Run returns is discarded.
func (r *Recorder) Run(ctx context.Context, lines <-chan string) error {
	ticker := r.cfg.Clock.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.abort("shutdown")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				r.abort("tracker stream closed")
				return nil
			}
			if t, sid, done := r.HandleLine(line); done {
				r.deliver(ctx, sid, t)
			}
		case <-ticker.C():
			if t, sid, done := r.checkTimeout(); done {
				r.deliver(ctx, sid, t)
			}
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, sessionID string, t kinematics.Trial) {
	if err := r.sink.SaveRecordedTrial(ctx, sessionID, t); err != nil {
		monitoring.Logf("failed to save trial %s: %v", t.ID, err)
	}
}

func (r *Recorder) abort(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		monitoring.Logf("discarding trial %s after %d frames: %s", r.trialID, len(r.left), reason)
		r.recording = false
	}
}

// HandleLine processes one tracker line. When the line ends the current
// trial the finished trial and its session are returned with done set.
func (r *Recorder) HandleLine(raw string) (t kinematics.Trial, sessionID string, done bool) {
	line, err := ParseLine(raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return kinematics.Trial{}, "", false
	}
	if err != nil {
		r.skipped++
		monitoring.Debugf("skipping tracker line: %v", err)
		return kinematics.Trial{}, "", false
	}

	switch line.Kind {
	case LineFrame:
		if !r.counted && len(r.frames) > 0 {
			// Counter appeared mid-trial: renumber the frames seen so far
			// so they run up to this one.
			shift := line.Frame - 1 - r.frames[len(r.frames)-1]
			for i := range r.frames {
				r.frames[i] += shift
			}
		}
		r.counted = true
		r.nextFrame = line.Frame
	case LineSample:
		s := kinematics.ToLabFrame(line.Sample)
		r.pending[line.Sensor-1] = &s
		if r.pending[0] != nil && r.pending[1] != nil {
			r.appendFrame()
		}
	case LineButton:
		return r.finishLocked(true)
	}
	if r.cfg.Clock.Since(r.started) >= r.cfg.Timeout {
		return r.finishLocked(false)
	}
	return kinematics.Trial{}, "", false
}

func (r *Recorder) appendFrame() {
	frame := r.nextFrame
	if r.counted && len(r.frames) > 0 && frame <= r.frames[len(r.frames)-1] {
		monitoring.Logf("trial %s: dropping frame %d, not after %d", r.trialID, frame, r.frames[len(r.frames)-1])
		r.pending = [2]*kinematics.Sample{}
		return
	}
	r.left = kinematics.AppendSample(r.left, *r.pending[0], r.cfg.SampleRate)
	r.right = kinematics.AppendSample(r.right, *r.pending[1], r.cfg.SampleRate)
	r.frames = append(r.frames, frame)
	r.pending = [2]*kinematics.Sample{}
	if !r.counted {
		r.nextFrame++
	}
}

func (r *Recorder) checkTimeout() (kinematics.Trial, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.cfg.Clock.Since(r.started) < r.cfg.Timeout {
		return kinematics.Trial{}, "", false
	}
	return r.finishLocked(false)
}

// finishLocked ends the current trial. Dropped frames are filled by linear
// interpolation when the tracker reported frame numbers.
func (r *Recorder) finishLocked(buttonPressed bool) (kinematics.Trial, string, bool) {
	r.recording = false
	reason := "timeout"
	if buttonPressed {
		reason = "button"
	}
	if len(r.left) < 2 {
		monitoring.Logf("discarding trial %s on %s: only %d frames", r.trialID, reason, len(r.left))
		return kinematics.Trial{}, "", false
	}

	left, right := r.left, r.right
	if r.counted {
		gaps := r.frames[len(r.frames)-1] - r.frames[0] + 1 - len(r.frames)
		if gaps > 0 {
			var err error
			if left, err = kinematics.Backfill(r.left, r.frames, r.cfg.SampleRate); err == nil {
				right, err = kinematics.Backfill(r.right, r.frames, r.cfg.SampleRate)
			}
			if err != nil {
				monitoring.Logf("discarding trial %s: backfill failed: %v", r.trialID, err)
				return kinematics.Trial{}, "", false
			}
			monitoring.Logf("trial %s: filled %d dropped frames", r.trialID, gaps)
		}
	}

	t := kinematics.Trial{
		ID:            r.trialID,
		Left:          left,
		Right:         right,
		ButtonPressed: buttonPressed,
		StartTime:     r.started,
		SampleRate:    r.cfg.SampleRate,
		Score:         -1,
	}
	monitoring.Logf("trial %s ended on %s after %d frames", t.ID, reason, t.Len())
	return t, r.sessionID, true
}

// Cancel discards the trial being recorded. It reports whether one was.
func (r *Recorder) Cancel() bool {
	r.mu.Lock()
	was := r.recording
	r.mu.Unlock()
	r.abort("cancelled")
	return was
}
