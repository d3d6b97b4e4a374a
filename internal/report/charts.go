package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// RenderTrialChart writes an interactive HTML page with the speed and
// height traces of both hands. Detected events are drawn as mark lines on
// the left-hand series.
func RenderTrialChart(w io.Writer, t kinematics.Trial, a kinematics.Analysis, u Units) error {
	if err := t.Validate(); err != nil {
		return err
	}
	times := make([]string, t.Len())
	for i := range times {
		times[i] = strconv.FormatFloat(float64(i)/float64(t.SampleRate), 'f', 3, 64)
	}
	var marks []opts.MarkLineNameXAxisItem
	if a.Detected() && !a.Events.IsZero() {
		for i, frame := range a.Events.Slice() {
			if frame >= 0 && frame < len(times) {
				marks = append(marks, opts.MarkLineNameXAxisItem{Name: eventLabels[i], XAxis: times[frame]})
			}
		}
	}

	subtitle := fmt.Sprintf("role %s, score %d", a.Role, a.Score)
	if !a.Detected() {
		subtitle += ", " + a.DetectionError
	}
	speed := traceChart(times, t, u.speedAxis(), fmt.Sprintf("Trial %s", t.ID), subtitle, marks, u.speed)
	height := traceChart(times, t, u.heightAxis(), "Hand height", "", marks, u.height)

	page := components.NewPage()
	page.PageTitle = "Trial " + t.ID
	page.AddCharts(speed, height)
	return page.Render(w)
}

func traceChart(times []string, t kinematics.Trial, yName, title, subtitle string, marks []opts.MarkLineNameXAxisItem, channel func(kinematics.Sample) float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(times)
	line.AddSeries("left", lineData(t.Left, channel),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithMarkLineNameXAxisItemOpts(marks...),
	)
	line.AddSeries("right", lineData(t.Right, channel),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func lineData(samples []kinematics.Sample, channel func(kinematics.Sample) float64) []opts.LineData {
	data := make([]opts.LineData, len(samples))
	for i, s := range samples {
		data[i] = opts.LineData{Value: round(channel(s), 4)}
	}
	return data
}

// RenderSummaryChart writes a bar chart of the mean bimanual and unimanual
// timing parameters of a session.
func RenderSummaryChart(w io.Writer, sessionID string, sum kinematics.Summary) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Session " + sessionID, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Session " + sessionID,
			Subtitle: fmt.Sprintf("%d of %d trials computed", sum.Computed, sum.Trials),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean (s)"}),
	)

	var names []string
	var means []opts.BarData
	for _, ps := range append(append([]kinematics.ParamStats{}, sum.Bimanual...), sum.Unimanual...) {
		if !isTiming(ps.Name) {
			continue
		}
		names = append(names, ps.Name)
		means = append(means, opts.BarData{Value: round(ps.Mean, 3)})
	}
	bar.SetXAxis(names).AddSeries("mean", means)
	return bar.Render(w)
}

// isTiming reports whether a parameter is measured in seconds.
func isTiming(name string) bool {
	switch name {
	case "box_smoothness", "trigger_smoothness",
		"box_path_length", "box_phase1_path_length", "box_phase2_path_length", "trigger_path_length":
		return false
	}
	return true
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
