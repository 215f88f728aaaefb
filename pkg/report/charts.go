package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"slack-insights/pkg/models"
)

var chartBlue = color.RGBA{R: 0x00, G: 0x7b, B: 0xff, A: 0xff}

// renderHourlyChart draws the 24-bucket histogram as a bar chart and writes
// it to path, overwriting any previous report's chart.
func renderHourlyChart(hist [24]int, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Hour of Day"
	p.Y.Label.Text = "Messages"
	p.Y.Min = 0

	values := make(plotter.Values, len(hist))
	for i, count := range hist {
		values[i] = float64(count)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("build hourly bar chart: %w", err)
	}
	bars.Color = chartBlue
	bars.LineStyle.Width = 0
	p.Add(bars)

	labels := make([]string, len(hist))
	for i := range labels {
		labels[i] = fmt.Sprintf("%02d", i)
	}
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save hourly chart: %w", err)
	}
	return nil
}

// renderActivityChart draws the per-day message counts of a week as a line
// chart.
func renderActivityChart(days []models.DayCount, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Day"
	p.Y.Label.Text = "Messages"
	p.Y.Min = 0

	points := make(plotter.XYs, len(days))
	labels := make([]string, len(days))
	for i, d := range days {
		points[i].X = float64(i)
		points[i].Y = float64(d.Count)
		labels[i] = d.Date.Format("01-02")
	}

	line, scatter, err := plotter.NewLinePoints(points)
	if err != nil {
		return fmt.Errorf("build activity chart: %w", err)
	}
	line.Color = chartBlue
	scatter.Color = chartBlue
	p.Add(line, scatter)
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save activity chart: %w", err)
	}
	return nil
}
