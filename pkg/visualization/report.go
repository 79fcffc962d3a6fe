package visualization

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"lunarterrain/internal/models"
)

// Report collects what goes into the interactive HTML summary.
type Report struct {
	Title       string
	Stats       models.TerrainStats
	Zones       []models.LandingZone
	PathProfile []float64
}

// Render writes the report as a single HTML page.
func (r Report) Render(w io.Writer) error {
	page := components.NewPage()

	page.AddCharts(r.slopeChart(), r.zoneChart())
	if len(r.PathProfile) > 0 {
		page.AddCharts(r.profileChart())
	}
	return page.Render(w)
}

// Save renders the report into file.
func (r Report) Save(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}

func (r Report) slopeChart() *charts.Bar {
	x := make([]string, len(r.Stats.SlopeDistribution))
	y := make([]opts.BarData, len(r.Stats.SlopeDistribution))
	for i, b := range r.Stats.SlopeDistribution {
		x[i] = b.Label
		y[i] = opts.BarData{Value: b.Percent}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: r.Title, Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Slope Distribution",
			Subtitle: fmt.Sprintf("mean slope %.2f°, danger area %.1f%%", r.Stats.MeanSlope, r.Stats.DangerAreaPercent),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("area %", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func (r Report) zoneChart() *charts.Bar {
	x := make([]string, len(r.Zones))
	area := make([]opts.BarData, len(r.Zones))
	tilt := make([]opts.BarData, len(r.Zones))
	for i, z := range r.Zones {
		x[i] = fmt.Sprintf("zone %d (%d,%d)", i+1, z.CenterCol, z.CenterRow)
		area[i] = opts.BarData{Value: z.Area}
		tilt[i] = opts.BarData{Value: z.TiltDegrees}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Landing Zones", Subtitle: fmt.Sprintf("%d zones", len(r.Zones))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("area (px)", area).
		AddSeries("tilt (°)", tilt)
	return bar
}

func (r Report) profileChart() *charts.Line {
	x := make([]int, len(r.PathProfile))
	y := make([]opts.LineData, len(r.PathProfile))
	for i, z := range r.PathProfile {
		x[i] = i
		y[i] = opts.LineData{Value: z}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Path Elevation Profile", Subtitle: fmt.Sprintf("%d cells", len(y))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).AddSeries("elevation", y)
	return line
}
