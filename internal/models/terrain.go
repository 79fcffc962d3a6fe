package models

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Grid is a dense H×W float grid stored in row-major order.
// It backs every raster in the pipeline: intensity, gradients,
// elevation and slope.
type Grid struct {
	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Data holds Width*Height values, row by row
	Data []float64
}

// NewGrid allocates a zero-filled grid
func NewGrid(width, height int) Grid {
	return Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// GridFromRows copies a slice of equal-length rows into a Grid
func GridFromRows(rows [][]float64) (Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Grid{}, fmt.Errorf("grid must have at least one row and one column")
	}
	g := NewGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != g.Width {
			return Grid{}, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), g.Width)
		}
		copy(g.Data[y*g.Width:], row)
	}
	return g, nil
}

// Empty reports whether the grid has a zero dimension or no backing data
func (g Grid) Empty() bool {
	return g.Width <= 0 || g.Height <= 0 || len(g.Data) < g.Width*g.Height
}

// Index converts a (col,row) coordinate to a row-major offset
func (g Grid) Index(x, y int) int {
	return y*g.Width + x
}

// Coordinate converts a row-major offset back to (col,row)
func (g Grid) Coordinate(idx int) (x, y int) {
	return idx % g.Width, idx / g.Width
}

// InBounds reports whether (x,y) addresses a cell of the grid
func (g Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// At returns the value at column x, row y
func (g Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

// Set stores v at column x, row y
func (g Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	c := NewGrid(g.Width, g.Height)
	copy(c.Data, g.Data)
	return c
}

// SameShape reports whether two grids have identical dimensions
func (g Grid) SameShape(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// GradientField holds the horizontal and vertical intensity derivatives.
// GX and GY always share the dimensions of the source intensity grid.
type GradientField struct {
	GX Grid
	GY Grid
}

// HazardTier buckets a cell by its slope percentile rank
type HazardTier uint8

const (
	Safe HazardTier = iota
	Moderate
	Danger
)

func (t HazardTier) String() string {
	switch t {
	case Safe:
		return "safe"
	case Moderate:
		return "moderate"
	case Danger:
		return "danger"
	default:
		return fmt.Sprintf("HazardTier(%d)", uint8(t))
	}
}

// TierGrid assigns a HazardTier to each cell, row-major like Grid
type TierGrid struct {
	Width  int
	Height int
	Tiers  []HazardTier
}

// At returns the tier at column x, row y
func (t TierGrid) At(x, y int) HazardTier {
	return t.Tiers[y*t.Width+x]
}

// Count returns how many cells carry the given tier
func (t TierGrid) Count(tier HazardTier) int {
	n := 0
	for _, v := range t.Tiers {
		if v == tier {
			n++
		}
	}
	return n
}

// Point is a grid position as (col,row)
type Point struct {
	X int
	Y int
}

// MarshalJSON encodes a point as a two element [x, y] array
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes a two element [x, y] array
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Path is an ordered start→goal sequence of grid positions, both ends included
type Path []Point

// LandingZone is a maximal 4-connected region of Safe cells.
// The bounding box is half-open: rows [RowStart,RowEnd), cols [ColStart,ColEnd).
type LandingZone struct {
	RowStart int
	ColStart int
	RowEnd   int
	ColEnd   int

	// Area is the number of Safe cells in the region
	Area int

	// CenterRow and CenterCol are the bounding box midpoint
	CenterRow int
	CenterCol int

	// TiltDegrees and Roughness describe the least-squares plane through the zone
	TiltDegrees float64
	Roughness   float64
}

// Contains reports whether (x,y) lies inside the zone's bounding box
func (z LandingZone) Contains(x, y int) bool {
	return y >= z.RowStart && y < z.RowEnd && x >= z.ColStart && x < z.ColEnd
}

// Center returns the zone centroid as a Point
func (z LandingZone) Center() Point {
	return Point{X: z.CenterCol, Y: z.CenterRow}
}

type landingZoneJSON struct {
	BBox        [4]int  `json:"bbox"`
	AreaPixels  int     `json:"area_pixels"`
	CenterPixel [2]int  `json:"center_pixel"`
	TiltDegrees float64 `json:"tilt_degrees"`
	Roughness   float64 `json:"roughness"`
}

// MarshalJSON keeps the record layout consumed by the viewer:
// bbox is (row_start, col_start, row_end, col_end), center_pixel is (row, col).
func (z LandingZone) MarshalJSON() ([]byte, error) {
	return json.Marshal(landingZoneJSON{
		BBox:        [4]int{z.RowStart, z.ColStart, z.RowEnd, z.ColEnd},
		AreaPixels:  z.Area,
		CenterPixel: [2]int{z.CenterRow, z.CenterCol},
		TiltDegrees: z.TiltDegrees,
		Roughness:   z.Roughness,
	})
}

func (z *LandingZone) UnmarshalJSON(data []byte) error {
	var raw landingZoneJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("landing zone: %w", err)
	}
	*z = LandingZone{
		RowStart:    raw.BBox[0],
		ColStart:    raw.BBox[1],
		RowEnd:      raw.BBox[2],
		ColEnd:      raw.BBox[3],
		Area:        raw.AreaPixels,
		CenterRow:   raw.CenterPixel[0],
		CenterCol:   raw.CenterPixel[1],
		TiltDegrees: raw.TiltDegrees,
		Roughness:   raw.Roughness,
	}
	return nil
}

// ExtremePoint is one of the highest or lowest cells of the surface.
// Z is the row, matching the viewer's X/elevation/Z axis convention.
type ExtremePoint struct {
	X         float64 `json:"x"`
	Elevation float64 `json:"y_elev"`
	Z         float64 `json:"z"`
}

// SlopeBin is one bucket of the slope distribution
type SlopeBin struct {
	Label   string  `json:"label"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Percent float64 `json:"percent"`
}

// TerrainStats summarises a reconstructed surface
type TerrainStats struct {
	MinElevation      float64        `json:"min_elevation"`
	MaxElevation      float64        `json:"max_elevation"`
	MeanElevation     float64        `json:"mean_elevation"`
	MeanSlope         float64        `json:"avg_slope"`
	DangerAreaPercent float64        `json:"danger_area_percent"`
	TopPoints         []ExtremePoint `json:"top_points"`
	BottomPoints      []ExtremePoint `json:"bottom_points"`
	SlopeDistribution []SlopeBin     `json:"slope_distribution"`
}

// MinMax returns the smallest and largest values of the grid
func (g Grid) MinMax() (lo, hi float64) {
	return floats.Min(g.Data), floats.Max(g.Data)
}

// Normalized min-max scales the grid into [0,1]. When the dynamic range
// is not above eps the surface is flat and an all-zero grid is returned.
func (g Grid) Normalized(eps float64) Grid {
	out := NewGrid(g.Width, g.Height)
	if g.Empty() {
		return out
	}
	lo, hi := g.MinMax()
	span := hi - lo
	if span <= eps {
		return out
	}
	for i, v := range g.Data {
		out.Data[i] = (v - lo) / span
	}
	return out
}

// Scaled returns a copy of the grid multiplied by s
func (g Grid) Scaled(s float64) Grid {
	out := g.Clone()
	floats.Scale(s, out.Data)
	return out
}
