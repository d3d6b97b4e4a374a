package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// ErrUnsupportedFormat is returned for plot formats other than png, pdf and svg.
var ErrUnsupportedFormat = errors.New("unsupported plot format")

var eventLabels = [6]string{"E1", "E2", "E3", "E4", "E5", "E6"}

// SaveTrialPlot writes the trial figure to path; the extension picks the
// format.
func SaveTrialPlot(path string, t kinematics.Trial, a kinematics.Analysis, u Units) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if err := checkFormat(format); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTrialPlot(f, format, t, a, u); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTrialPlot renders two stacked panels, hand speed and hand height
// against time, with a dashed marker at each detected event.
func WriteTrialPlot(w io.Writer, format string, t kinematics.Trial, a kinematics.Analysis, u Units) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	speed, err := tracePlot(t, u.speedAxis(), u.speed)
	if err != nil {
		return err
	}
	speed.Title.Text = fmt.Sprintf("Trial %s (%s, score %d)", t.ID, a.Role, a.Score)
	height, err := tracePlot(t, u.heightAxis(), u.height)
	if err != nil {
		return err
	}
	if a.Detected() && !a.Events.IsZero() {
		for _, p := range []*plot.Plot{speed, height} {
			if err := addEventMarkers(p, a.Events, t.SampleRate); err != nil {
				return err
			}
		}
	}

	c, err := draw.NewFormattedCanvas(14*vg.Inch, 9*vg.Inch, format)
	if err != nil {
		return err
	}
	plots := [][]*plot.Plot{{speed}, {height}}
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: 4 * vg.Millimeter, PadTop: 2 * vg.Millimeter, PadBottom: 2 * vg.Millimeter}
	canvases := plot.Align(plots, tiles, draw.New(c))
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	_, err = c.WriteTo(w)
	return err
}

func checkFormat(format string) error {
	switch format {
	case "png", "pdf", "svg":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// tracePlot draws one channel of both hands against time in seconds.
func tracePlot(t kinematics.Trial, yLabel string, channel func(kinematics.Sample) float64) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10

	hands := []struct {
		name    string
		samples []kinematics.Sample
	}{
		{"left", t.Left},
		{"right", t.Right},
	}
	fs := float64(t.SampleRate)
	for i, h := range hands {
		pts := make(plotter.XYs, len(h.samples))
		for j, s := range h.samples {
			pts[j] = plotter.XY{X: float64(j) / fs, Y: channel(s)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(h.name, line)
	}
	return p, nil
}

// addEventMarkers adds a vertical dashed line and a label for each event
// over the current y range of p.
func addEventMarkers(p *plot.Plot, ev kinematics.EventSet, sampleRate int) error {
	yMin, yMax := p.Y.Min, p.Y.Max
	if yMax <= yMin {
		yMax = yMin + 1
	}
	var labels plotter.XYLabels
	for i, frame := range ev.Slice() {
		x := float64(frame) / float64(sampleRate)
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: yMin}, {X: x, Y: yMax}})
		if err != nil {
			return err
		}
		marker.Color = plotutil.Color(i + 2)
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(marker)
		labels.XYs = append(labels.XYs, plotter.XY{X: x, Y: yMax})
		labels.Labels = append(labels.Labels, eventLabels[i])
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	p.Add(l)
	return nil
}
