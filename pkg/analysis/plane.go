package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"lunarterrain/internal/models"
)

// ErrDegenerateZone is returned when the cells do not span a plane.
var ErrDegenerateZone = errors.New("analysis: zone cells do not determine a plane")

// Plane is the least-squares fit z = A·x + B·y + C over a set of cells.
type Plane struct {
	A, B, C float64

	// TiltDegrees is the angle between the plane and the horizontal
	TiltDegrees float64

	// Roughness is the RMS residual of the cells about the plane
	Roughness float64
}

// FitPlane fits a plane to the elevation at the given cells with a QR
// least-squares solve. At least three non-collinear cells are required.
func FitPlane(elev models.Grid, cells []models.Point) (Plane, error) {
	n := len(cells)
	if n < 3 {
		return Plane{}, fmt.Errorf("%w: %d cells", ErrDegenerateZone, n)
	}

	// Centre coordinates for conditioning; C is shifted back afterwards.
	var mx, my float64
	for _, c := range cells {
		mx += float64(c.X)
		my += float64(c.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	A := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, c := range cells {
		A.Set(i, 0, float64(c.X)-mx)
		A.Set(i, 1, float64(c.Y)-my)
		A.Set(i, 2, 1)
		b.SetVec(i, elev.At(c.X, c.Y))
	}

	var qr mat.QR
	qr.Factorize(A)
	coef := mat.NewDense(3, 1, nil)
	if err := qr.SolveTo(coef, false, b); err != nil {
		return Plane{}, fmt.Errorf("%w: %v", ErrDegenerateZone, err)
	}

	p := Plane{A: coef.At(0, 0), B: coef.At(1, 0)}
	p.C = coef.At(2, 0) - p.A*mx - p.B*my
	p.TiltDegrees = math.Atan(math.Hypot(p.A, p.B)) * 180 / math.Pi

	var ss float64
	for _, c := range cells {
		r := elev.At(c.X, c.Y) - (p.A*float64(c.X) + p.B*float64(c.Y) + p.C)
		ss += r * r
	}
	p.Roughness = math.Sqrt(ss / float64(n))

	return p, nil
}

// ZoneCells groups the cells of a row-major label grid by label in one pass.
// Entry i holds the cells labelled i+1; label 0 and labels above zones are
// ignored.
func ZoneCells(width int, labels []int, zones int) [][]models.Point {
	cells := make([][]models.Point, zones)
	for i, l := range labels {
		if l < 1 || l > zones {
			continue
		}
		cells[l-1] = append(cells[l-1], models.Point{X: i % width, Y: i / width})
	}
	return cells
}
