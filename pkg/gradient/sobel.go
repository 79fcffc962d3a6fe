// Package gradient extracts horizontal and vertical intensity derivatives
// from an intensity grid with a 3×3 Sobel kernel.
//
// Values are kept as float64 end to end. The 8-bit rendering produced by
// Visualize is for inspection only and must never be fed to the Poisson
// reconstructor.
package gradient

import (
	"errors"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"

	"lunarterrain/internal/models"
)

// ErrEmptyGrid is returned when the input grid has a zero dimension.
var ErrEmptyGrid = errors.New("gradient: input grid must have at least one row and one column")

// sobelWeights is the smoothing column of the separable 3x3 Sobel kernel.
var sobelWeights = [3]float64{1, 2, 1}

// Extract computes gx and gy for every cell. Out-of-range neighbours are
// replicated from the nearest edge cell, so border cells see the step
// between themselves and their inner neighbour.
func Extract(grid models.Grid) (models.GradientField, error) {
	if grid.Empty() {
		return models.GradientField{}, ErrEmptyGrid
	}

	w, h := grid.Width, grid.Height
	gx := models.NewGrid(w, h)
	gy := models.NewGrid(w, h)
	at := func(x, y int) float64 { return grid.Data[y*w+x] }

	for y := 0; y < h; y++ {
		up, down := clamp(y-1, h), clamp(y+1, h)
		for x := 0; x < w; x++ {
			left, right := clamp(x-1, w), clamp(x+1, w)

			// Pairwise differences keep flat regions exactly zero
			gx.Data[y*w+x] = sobelWeights[0]*(at(right, up)-at(left, up)) +
				sobelWeights[1]*(at(right, y)-at(left, y)) +
				sobelWeights[2]*(at(right, down)-at(left, down))
			gy.Data[y*w+x] = sobelWeights[0]*(at(left, down)-at(left, up)) +
				sobelWeights[1]*(at(x, down)-at(x, up)) +
				sobelWeights[2]*(at(right, down)-at(right, up))
		}
	}

	return models.GradientField{GX: gx, GY: gy}, nil
}

// Visualize min-max scales a gradient component into an 8-bit image.
// A constant component renders black.
func Visualize(g models.Grid) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	if g.Empty() {
		return img
	}

	lo, hi := floats.Min(g.Data), floats.Max(g.Data)
	span := hi - lo
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var v uint8
			if span > 0 {
				v = uint8(math.Round((g.At(x, y) - lo) / span * 255))
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Magnitude returns sqrt(gx²+gy²) per cell.
func Magnitude(field models.GradientField) models.Grid {
	out := models.NewGrid(field.GX.Width, field.GX.Height)
	for i := range out.Data {
		out.Data[i] = math.Hypot(field.GX.Data[i], field.GY.Data[i])
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
