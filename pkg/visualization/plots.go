package visualization

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"lunarterrain/internal/models"
)

// SlopeHistogramBins is the bar count of the raw slope histogram.
const SlopeHistogramBins = 45

// PlotSlopeHistogram saves a histogram of every slope angle in the grid.
func PlotSlopeHistogram(slopeGrid models.Grid, file string) error {
	if slopeGrid.Empty() {
		return fmt.Errorf("slope grid is empty")
	}

	p := plot.New()
	p.Title.Text = "Slope Angles"
	p.X.Label.Text = "Slope (degrees)"
	p.Y.Label.Text = "Cells"

	h, err := plotter.NewHist(plotter.Values(slopeGrid.Data), SlopeHistogramBins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	p.Add(h)

	return p.Save(8*vg.Inch, 5*vg.Inch, file)
}

// PlotSlopeDistribution saves the binned slope distribution as a bar chart
// with one labelled bar per bin.
func PlotSlopeDistribution(bins []models.SlopeBin, file string) error {
	if len(bins) == 0 {
		return fmt.Errorf("no slope bins")
	}

	p := plot.New()
	p.Title.Text = "Slope Distribution"
	p.Y.Label.Text = "Area (%)"

	values := make(plotter.Values, len(bins))
	labels := make([]string, len(bins))
	for i, b := range bins {
		values[i] = b.Percent
		labels[i] = b.Label
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("build bar chart: %w", err)
	}
	bars.Color = SafeColor
	p.Add(bars)
	p.NominalX(labels...)

	return p.Save(9*vg.Inch, 5*vg.Inch, file)
}

// PlotProfile saves an elevation profile, indexed by step, as a line plot.
func PlotProfile(title string, profile []float64, file string) error {
	if len(profile) == 0 {
		return fmt.Errorf("profile is empty")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Elevation"

	pts := make(plotter.XYs, len(profile))
	for i, z := range profile {
		pts[i].X = float64(i)
		pts[i].Y = z
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	return p.Save(10*vg.Inch, 4*vg.Inch, file)
}
