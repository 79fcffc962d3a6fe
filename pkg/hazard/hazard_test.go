package hazard

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarterrain/internal/models"
)

// rampSlope builds a w×h slope grid with distinct, increasing values.
func rampSlope(w, h int) models.Grid {
	g := models.NewGrid(w, h)
	for i := range g.Data {
		g.Data[i] = float64(i) * 0.1
	}
	return g
}

// tiersFromRows builds a TierGrid from rows of 'S', 'M', 'D' runes.
func tiersFromRows(rows ...string) models.TierGrid {
	tg := models.TierGrid{Width: len(rows[0]), Height: len(rows)}
	for _, row := range rows {
		for _, c := range row {
			switch c {
			case 'S':
				tg.Tiers = append(tg.Tiers, models.Safe)
			case 'M':
				tg.Tiers = append(tg.Tiers, models.Moderate)
			default:
				tg.Tiers = append(tg.Tiers, models.Danger)
			}
		}
	}
	return tg
}

func TestClassify_EmptyGrid(t *testing.T) {
	_, err := Classify(models.Grid{}, DefaultSafePercentile, DefaultModeratePercentile)
	assert.ErrorIs(t, err, ErrEmptySlope)
}

func TestClassify_InvalidPercentiles(t *testing.T) {
	_, err := Classify(rampSlope(4, 4), 70, 30)
	assert.Error(t, err)
	_, err = Classify(rampSlope(4, 4), 0, 30)
	assert.Error(t, err)
}

// TestClassify_NearlyFlat checks that floating-point noise in the slope
// grid does not split uniform terrain into tiers.
func TestClassify_NearlyFlat(t *testing.T) {
	g := models.NewGrid(10, 10)
	for i := range g.Data {
		g.Data[i] = 5 + float64(i)*1e-12
	}

	c, err := Classify(g, DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)
	assert.Equal(t, 100, c.Tiers.Count(models.Safe))
	assert.Equal(t, Thresholds{}, c.Thresholds)
	for _, v := range c.Normalized.Data {
		require.Zero(t, v)
	}

	g.Data[99] = 5 + 1e-3
	c, err = Classify(g, DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)
	assert.Less(t, c.Tiers.Count(models.Safe), 100)
}

// TestClassify_SafeFraction checks the percentile cut yields about a third Safe cells.
func TestClassify_SafeFraction(t *testing.T) {
	for _, dims := range [][2]int{{10, 10}, {20, 20}, {37, 23}} {
		c, err := Classify(rampSlope(dims[0], dims[1]), DefaultSafePercentile, DefaultModeratePercentile)
		require.NoError(t, err)

		n := float64(dims[0] * dims[1])
		safe := float64(c.Tiers.Count(models.Safe)) / n
		assert.GreaterOrEqual(t, safe, 0.32, "dims %v", dims)
		assert.LessOrEqual(t, safe, 0.345, "dims %v", dims)

		danger := float64(c.Tiers.Count(models.Danger)) / n
		assert.InDelta(t, 0.34, danger, 0.02, "dims %v", dims)
		assert.Less(t, c.Thresholds.Low, c.Thresholds.Mid)
	}
}

// TestClassify_TiersFollowThresholds verifies every cell lands in the tier its
// normalized slope selects.
func TestClassify_TiersFollowThresholds(t *testing.T) {
	c, err := Classify(rampSlope(12, 9), DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)

	for i, v := range c.Normalized.Data {
		want := models.Danger
		if v <= c.Thresholds.Low {
			want = models.Safe
		} else if v <= c.Thresholds.Mid {
			want = models.Moderate
		}
		assert.Equal(t, want, c.Tiers.Tiers[i], "cell %d (norm %.4f)", i, v)
	}
}

// TestClassify_DangerWhenMaxAboveMid ties the maximum slope to the Danger tier.
func TestClassify_DangerWhenMaxAboveMid(t *testing.T) {
	c, err := Classify(rampSlope(8, 8), DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)
	require.Greater(t, 1.0, c.Thresholds.Mid)
	assert.Positive(t, c.Tiers.Count(models.Danger))
}

// TestClassify_FlatSlope treats a degenerate range as all zero, hence all Safe.
func TestClassify_FlatSlope(t *testing.T) {
	g := models.NewGrid(5, 5)
	for i := range g.Data {
		g.Data[i] = 12.5
	}
	c, err := Classify(g, DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)
	assert.Equal(t, 25, c.Tiers.Count(models.Safe))
	assert.Zero(t, c.Thresholds.Low)
}

func TestSegment_DropsSmallComponents(t *testing.T) {
	tiers := tiersFromRows(
		"DDDDDDDDDD",
		"DSSSSDDDDD",
		"DSSSSDDDDD",
		"DSSSSDDMMD",
		"DDDDDDDMMD",
		"DDDDDDDDDS",
	)
	seg := Segment(tiers, 5)
	require.Len(t, seg.Zones, 1)

	want := models.LandingZone{
		RowStart: 1, ColStart: 1, RowEnd: 4, ColEnd: 5,
		Area:      12,
		CenterRow: 2, CenterCol: 3,
	}
	if diff := cmp.Diff(want, seg.Zones[0]); diff != "" {
		t.Errorf("zone mismatch (-want +got):\n%s", diff)
	}

	// The isolated safe corner cell is dropped, not merged.
	assert.Zero(t, seg.Labels[5*10+9])
}

func TestSegment_FourConnectivity(t *testing.T) {
	// Diagonal neighbours must not join components.
	tiers := tiersFromRows(
		"SD",
		"DS",
	)
	zones := DetectLandingZones(tiers, 1)
	require.Len(t, zones, 2)
	assert.Equal(t, 1, zones[0].Area)
	assert.Equal(t, 1, zones[1].Area)
	assert.Equal(t, models.Point{X: 0, Y: 0}, zones[0].Center())
	assert.Equal(t, models.Point{X: 1, Y: 1}, zones[1].Center())
}

// TestSegment_ZonesInsideSafeMask checks zone labels only cover Safe cells and
// every reported zone meets the area threshold.
func TestSegment_ZonesInsideSafeMask(t *testing.T) {
	c, err := Classify(checkerSlope(40, 30), DefaultSafePercentile, DefaultModeratePercentile)
	require.NoError(t, err)

	const minArea = 20
	seg := Segment(c.Tiers, minArea)
	counts := make(map[int]int)
	for i, label := range seg.Labels {
		if label == 0 {
			continue
		}
		assert.Equal(t, models.Safe, c.Tiers.Tiers[i], "cell %d labeled but not Safe", i)
		counts[label]++
	}
	for i, z := range seg.Zones {
		assert.GreaterOrEqual(t, z.Area, minArea)
		assert.Equal(t, z.Area, counts[i+1])
		assert.LessOrEqual(t, z.Area, (z.RowEnd-z.RowStart)*(z.ColEnd-z.ColStart))
	}
}

// checkerSlope produces blocks of low and high slope so several safe regions form.
func checkerSlope(w, h int) models.Grid {
	g := models.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := math.Abs(math.Sin(float64(x)/4) * math.Cos(float64(y)/5) * 40)
			g.Set(x, y, v+float64(x+y)*1e-3)
		}
	}
	return g
}

func TestZoneIndex_Nearest(t *testing.T) {
	zones := []models.LandingZone{
		{RowStart: 0, ColStart: 0, RowEnd: 4, ColEnd: 4, Area: 16, CenterRow: 2, CenterCol: 2},
		{RowStart: 10, ColStart: 20, RowEnd: 14, ColEnd: 24, Area: 16, CenterRow: 12, CenterCol: 22},
		{RowStart: 30, ColStart: 0, RowEnd: 34, ColEnd: 6, Area: 24, CenterRow: 32, CenterCol: 3},
	}
	idx := NewZoneIndex(zones)

	z, d, ok := idx.Nearest(models.Point{X: 21, Y: 15})
	require.True(t, ok)
	assert.Equal(t, zones[1], z)
	assert.InDelta(t, math.Hypot(1, 3), d, 1e-9)

	z, _, ok = idx.Nearest(models.Point{X: 0, Y: 40})
	require.True(t, ok)
	assert.Equal(t, zones[2], z)
}

func TestZoneIndex_Empty(t *testing.T) {
	_, _, ok := NewZoneIndex(nil).Nearest(models.Point{X: 1, Y: 1})
	assert.False(t, ok)
}
