package acquisition

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/bimanual.report/internal/timeutil"
)

// ImportCapture splits a recorded tracker stream into trials and hands each
// one to sink. A trial starts at the first line after the previous one
// ended and ends on a button press or after cfg.Timeout of stream time. Stream
// time starts at start and advances one frame period per right-hand sample;
// cfg.Clock is ignored. A trial still open at the end of src is discarded.
// It returns the number of trials delivered.
func ImportCapture(ctx context.Context, src io.Reader, sessionID string, start time.Time, cfg Config, sink Sink) (int, error) {
	clock := timeutil.NewMockClock(start)
	cfg.Clock = clock
	r, err := NewRecorder(cfg, sink)
	if err != nil {
		return 0, err
	}
	period := time.Second / time.Duration(cfg.SampleRate)

	delivered := 0
	scan := bufio.NewScanner(src)
	for scan.Scan() {
		if err := ctx.Err(); err != nil {
			r.Cancel()
			return delivered, err
		}
		raw := scan.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if !r.Status().Recording {
			if _, err := r.Start(sessionID); err != nil {
				return delivered, err
			}
		}
		if line, err := ParseLine(raw); err == nil && line.Kind == LineSample && line.Sensor == SensorRight {
			clock.Advance(period)
		}
		t, sid, done := r.HandleLine(raw)
		if !done {
			continue
		}
		if err := sink.SaveRecordedTrial(ctx, sid, t); err != nil {
			return delivered, fmt.Errorf("save trial %d: %w", delivered+1, err)
		}
		delivered++
	}
	r.abort("end of capture")
	if err := scan.Err(); err != nil {
		return delivered, fmt.Errorf("read capture: %w", err)
	}
	return delivered, nil
}
