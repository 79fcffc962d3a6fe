// Package analysis summarises a reconstructed surface: elevation and slope
// statistics, extreme points and per-zone plane fits.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lunarterrain/internal/models"
)

// ExtremeCount is how many highest and lowest points are reported.
const ExtremeCount = 5

const maxSlopeDegrees = 90.0

// slopeBins are the slope distribution buckets in degrees. The last bin runs
// to the 90 degree limit of the slope domain.
var slopeBins = []struct {
	label string
	lower float64
}{
	{"0-5° (Very Low)", 0},
	{"5-15° (Low)", 5},
	{"15-30° (Moderate)", 15},
	{"30-45° (High)", 30},
	{">45° (Critical)", 45},
}

// Summarize computes terrain statistics from the final elevation grid, its
// slope grid and the hazard tiers. All three must share dimensions.
func Summarize(elev, slopeGrid models.Grid, tiers models.TierGrid) models.TerrainStats {
	var st models.TerrainStats
	if elev.Empty() {
		return st
	}

	st.MinElevation, st.MaxElevation = elev.MinMax()
	st.MeanElevation = stat.Mean(elev.Data, nil)
	if !slopeGrid.Empty() {
		st.MeanSlope = stat.Mean(slopeGrid.Data, nil)
		st.SlopeDistribution = SlopeDistribution(slopeGrid)
	}
	if n := len(tiers.Tiers); n > 0 {
		st.DangerAreaPercent = 100 * float64(tiers.Count(models.Danger)) / float64(n)
	}
	st.TopPoints, st.BottomPoints = ExtremePoints(elev, ExtremeCount)

	return st
}

// ExtremePoints returns up to k highest cells (highest first) and k lowest
// cells (lowest first). Each cell is reported at most once per list.
func ExtremePoints(elev models.Grid, k int) (top, bottom []models.ExtremePoint) {
	n := len(elev.Data)
	if k > n {
		k = n
	}
	sorted := make([]float64, n)
	copy(sorted, elev.Data)
	inds := make([]int, n)
	floats.Argsort(sorted, inds)

	point := func(idx int) models.ExtremePoint {
		x, y := elev.Coordinate(idx)
		return models.ExtremePoint{X: float64(x), Elevation: elev.Data[idx], Z: float64(y)}
	}
	for i := 0; i < k; i++ {
		top = append(top, point(inds[n-1-i]))
		bottom = append(bottom, point(inds[i]))
	}
	return top, bottom
}

// SlopeDistribution buckets slope angles and returns each bucket's share of
// the cells as a percentage.
func SlopeDistribution(slopeGrid models.Grid) []models.SlopeBin {
	dividers := make([]float64, 0, len(slopeBins)+1)
	for _, b := range slopeBins {
		dividers = append(dividers, b.lower)
	}
	dividers = append(dividers, math.Inf(1))

	x := make([]float64, len(slopeGrid.Data))
	copy(x, slopeGrid.Data)
	sort.Float64s(x)
	// stat.Histogram needs every value inside the outer dividers.
	if len(x) > 0 && x[0] < 0 {
		for i := 0; i < len(x) && x[i] < 0; i++ {
			x[i] = 0
		}
	}

	counts := make([]float64, len(slopeBins))
	stat.Histogram(counts, dividers, x, nil)

	bins := make([]models.SlopeBin, len(slopeBins))
	total := float64(len(x))
	for i, b := range slopeBins {
		bins[i] = models.SlopeBin{
			Label: b.label,
			Lower: b.lower,
			Upper: math.Min(dividers[i+1], maxSlopeDegrees),
		}
		if total > 0 {
			bins[i].Percent = 100 * counts[i] / total
		}
	}
	return bins
}
