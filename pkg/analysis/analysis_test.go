package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarterrain/internal/models"
)

func gridOf(w, h int, f func(x, y int) float64) models.Grid {
	g := models.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, f(x, y))
		}
	}
	return g
}

func TestSummarize_Basics(t *testing.T) {
	elev := gridOf(4, 3, func(x, y int) float64 { return float64(y*4 + x) })
	slopeGrid := gridOf(4, 3, func(x, y int) float64 { return float64(x) * 20 })
	tiers := models.TierGrid{Width: 4, Height: 3, Tiers: make([]models.HazardTier, 12)}
	tiers.Tiers[0], tiers.Tiers[5], tiers.Tiers[11] = models.Danger, models.Danger, models.Danger

	st := Summarize(elev, slopeGrid, tiers)
	assert.Equal(t, 0.0, st.MinElevation)
	assert.Equal(t, 11.0, st.MaxElevation)
	assert.InDelta(t, 5.5, st.MeanElevation, 1e-12)
	assert.InDelta(t, 30, st.MeanSlope, 1e-12)
	assert.InDelta(t, 25, st.DangerAreaPercent, 1e-12)

	require.Len(t, st.TopPoints, ExtremeCount)
	require.Len(t, st.BottomPoints, ExtremeCount)
	assert.Equal(t, models.ExtremePoint{X: 3, Elevation: 11, Z: 2}, st.TopPoints[0])
	assert.Equal(t, models.ExtremePoint{X: 2, Elevation: 10, Z: 2}, st.TopPoints[1])
	assert.Equal(t, models.ExtremePoint{X: 0, Elevation: 0, Z: 0}, st.BottomPoints[0])
	assert.Equal(t, models.ExtremePoint{X: 0, Elevation: 4, Z: 1}, st.BottomPoints[4])
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(models.Grid{}, models.Grid{}, models.TierGrid{})
	assert.Zero(t, st.MaxElevation)
	assert.Nil(t, st.TopPoints)
}

func TestExtremePoints_SmallGrid(t *testing.T) {
	top, bottom := ExtremePoints(gridOf(2, 1, func(x, y int) float64 { return float64(x) }), ExtremeCount)
	assert.Len(t, top, 2)
	assert.Len(t, bottom, 2)
	assert.Equal(t, 1.0, top[0].Elevation)
	assert.Equal(t, 0.0, bottom[0].Elevation)
}

func TestSlopeDistribution(t *testing.T) {
	// One value per bin, plus an extra in the critical bin.
	values := []float64{0, 7, 20, 44.9, 45, 80}
	slopeGrid := models.Grid{Width: len(values), Height: 1, Data: values}

	bins := SlopeDistribution(slopeGrid)
	require.Len(t, bins, 5)

	want := []float64{1, 1, 1, 1, 2}
	var total float64
	for i, b := range bins {
		assert.InDelta(t, 100*want[i]/6, b.Percent, 1e-9, b.Label)
		total += b.Percent
	}
	assert.InDelta(t, 100, total, 1e-9)
	assert.Equal(t, "0-5° (Very Low)", bins[0].Label)
	assert.Equal(t, ">45° (Critical)", bins[4].Label)
	assert.Equal(t, 90.0, bins[4].Upper)
	assert.Equal(t, 15.0, bins[1].Upper)

	// Input is left untouched.
	assert.Equal(t, 7.0, values[1])
}

func TestFitPlane_Exact(t *testing.T) {
	elev := gridOf(10, 8, func(x, y int) float64 { return 0.5*float64(x) - 0.25*float64(y) + 3 })
	var cells []models.Point
	for y := 2; y < 6; y++ {
		for x := 1; x < 7; x++ {
			cells = append(cells, models.Point{X: x, Y: y})
		}
	}

	p, err := FitPlane(elev, cells)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.A, 1e-9)
	assert.InDelta(t, -0.25, p.B, 1e-9)
	assert.InDelta(t, 3, p.C, 1e-9)
	assert.InDelta(t, math.Atan(math.Hypot(0.5, 0.25))*180/math.Pi, p.TiltDegrees, 1e-9)
	assert.InDelta(t, 0, p.Roughness, 1e-9)
}

func TestFitPlane_Roughness(t *testing.T) {
	// A flat checkerboard of ±1 fits z=0 with unit RMS residual.
	elev := gridOf(6, 6, func(x, y int) float64 {
		if (x+y)%2 == 0 {
			return 1
		}
		return -1
	})
	var cells []models.Point
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			cells = append(cells, models.Point{X: x, Y: y})
		}
	}
	p, err := FitPlane(elev, cells)
	require.NoError(t, err)
	assert.InDelta(t, 0, p.TiltDegrees, 1e-9)
	assert.InDelta(t, 1, p.Roughness, 1e-9)
}

func TestFitPlane_Degenerate(t *testing.T) {
	elev := gridOf(5, 5, func(x, y int) float64 { return 0 })

	_, err := FitPlane(elev, []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}})
	assert.True(t, errors.Is(err, ErrDegenerateZone))

	row := []models.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}, {X: 3, Y: 2}}
	_, err = FitPlane(elev, row)
	assert.ErrorIs(t, err, ErrDegenerateZone)
}

func TestZoneCells(t *testing.T) {
	labels := []int{
		0, 1, 1,
		2, 1, 0,
	}
	cells := ZoneCells(3, labels, 2)
	require.Len(t, cells, 2)
	assert.Equal(t, []models.Point{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}}, cells[0])
	assert.Equal(t, []models.Point{{X: 0, Y: 1}}, cells[1])

	// Labels beyond the zone count are skipped
	assert.Equal(t, [][]models.Point{{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}}}, ZoneCells(3, labels, 1))
	assert.Empty(t, ZoneCells(3, labels, 0))
}
