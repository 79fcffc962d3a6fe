// Package slope derives slope angles from an elevation grid.
package slope

import (
	"math"

	"lunarterrain/internal/models"
)

// Compute returns the slope angle in degrees for every cell using unit grid
// spacing. Interior cells use central differences, edges fall back to
// one-sided differences, and an axis of length one contributes nothing.
func Compute(elev models.Grid) models.Grid {
	out := models.NewGrid(elev.Width, elev.Height)
	for y := 0; y < elev.Height; y++ {
		for x := 0; x < elev.Width; x++ {
			out.Set(x, y, At(elev, x, y, 1, 1))
		}
	}
	return out
}

// At returns the slope angle in degrees at (x,y) for grid spacings dx and dy.
// The planner calls it directly so a query can use its own step sizes.
func At(elev models.Grid, x, y int, dx, dy float64) float64 {
	dzdx := Derivative(elev, x, y, true) / dx
	dzdy := Derivative(elev, x, y, false) / dy
	return Angle(math.Hypot(dzdx, dzdy))
}

// Derivative estimates ∂z/∂x (horizontal) or ∂z/∂y per grid step at (x,y).
func Derivative(elev models.Grid, x, y int, horizontal bool) float64 {
	n, i := elev.Height, y
	at := func(k int) float64 { return elev.At(x, k) }
	if horizontal {
		n, i = elev.Width, x
		at = func(k int) float64 { return elev.At(k, y) }
	}

	prev, next := i-1, i+1
	if prev < 0 {
		prev = 0
	}
	if next > n-1 {
		next = n - 1
	}
	if next == prev {
		return 0
	}
	return (at(next) - at(prev)) / float64(next-prev)
}

// Angle converts a gradient magnitude to a slope angle in degrees, in [0,90).
func Angle(magnitude float64) float64 {
	return math.Atan(magnitude) * 180 / math.Pi
}
