package reconstruction

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/gradient"
)

// createGrid fills a width x height grid from pattern
func createGrid(width, height int, pattern func(x, y int) float64) models.Grid {
	g := models.NewGrid(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.Set(x, y, pattern(x, y))
		}
	}
	return g
}

// TestFFT2DRoundTrip verifies the inverse transform undoes the forward one
// for sizes that are not powers of two
func TestFFT2DRoundTrip(t *testing.T) {
	width, height := 5, 3
	data := make([]complex128, width*height)
	for i := range data {
		data[i] = complex(math.Sin(float64(i)), float64(i%4))
	}

	back := fft2D(fft2D(data, width, height, false), width, height, true)
	for i := range data {
		if cmplx.Abs(back[i]-data[i]) > 1e-10 {
			t.Errorf("Index %d: expected %v, got %v", i, data[i], back[i])
		}
	}
}

// TestFFT2DConstant verifies a constant grid puts all energy in the DC bin
func TestFFT2DConstant(t *testing.T) {
	width, height := 4, 6
	spectrum := fft2D(toComplex(createGrid(width, height, func(x, y int) float64 { return 2 }).Data), width, height, false)

	if got := real(spectrum[0]); math.Abs(got-48) > 1e-9 {
		t.Errorf("Expected DC of 48, got %f", got)
	}
	for i := 1; i < len(spectrum); i++ {
		if cmplx.Abs(spectrum[i]) > 1e-9 {
			t.Errorf("Expected bin %d to be zero, got %v", i, spectrum[i])
		}
	}
}

// TestDivergence verifies the forward difference truncated at the last row and column
func TestDivergence(t *testing.T) {
	field := models.GradientField{
		GX: createGrid(3, 2, func(x, y int) float64 { return float64(x) }),
		GY: createGrid(3, 2, func(x, y int) float64 { return float64(2 * y) }),
	}
	div := Divergence(field)

	expected, err := models.GridFromRows([][]float64{
		{-3, -3, -2},
		{-1, -1, 0},
	})
	if err != nil {
		t.Fatalf("Failed to build expected grid: %v", err)
	}
	for y := 0; y < expected.Height; y++ {
		for x := 0; x < expected.Width; x++ {
			if got, want := div.At(x, y), expected.At(x, y); got != want {
				t.Errorf("div(%d,%d): expected %f, got %f", x, y, want, got)
			}
		}
	}
}

// TestLaplacianEigenvalue verifies the DC bin is forced to 1 and all others
// are negative
func TestLaplacianEigenvalue(t *testing.T) {
	if got := laplacianEigenvalue(0, 0, 4, 3); got != 1 {
		t.Errorf("Expected DC eigenvalue 1, got %f", got)
	}
	for v := 0; v < 3; v++ {
		for u := 0; u < 4; u++ {
			if u == 0 && v == 0 {
				continue
			}
			if got := laplacianEigenvalue(u, v, 4, 3); got >= 0 {
				t.Errorf("Expected negative eigenvalue at (%d,%d), got %f", u, v, got)
			}
		}
	}
	// 2cos(π/2)-2 + 2cos(0)-2
	if got := laplacianEigenvalue(2, 0, 4, 3); math.Abs(got+2) > 1e-12 {
		t.Errorf("Expected -2 at (2,0), got %f", got)
	}
}

// TestSolvePoisson_ZeroField verifies an all-zero field gives a flat surface
func TestSolvePoisson_ZeroField(t *testing.T) {
	field := models.GradientField{GX: models.NewGrid(6, 4), GY: models.NewGrid(6, 4)}

	surface, err := SolvePoisson(field, DefaultFlatEpsilon)
	if err != nil {
		t.Fatalf("Failed to solve: %v", err)
	}
	if !surface.Flat {
		t.Errorf("Expected flat surface, range %g", surface.RawRange)
	}
	for i, v := range surface.Height.Data {
		if v != 0 {
			t.Fatalf("Expected zero height at %d, got %f", i, v)
		}
	}
	if surface.ImagResidue != 0 {
		t.Errorf("Expected zero imaginary residue, got %g", surface.ImagResidue)
	}
	if surface.NonFinite {
		t.Errorf("Expected a finite solve for a zero field")
	}
}

// TestSolvePoisson_Shape verifies the output keeps the input dimensions and range
func TestSolvePoisson_Shape(t *testing.T) {
	sizes := []struct{ width, height int }{{1, 1}, {7, 1}, {1, 5}, {9, 6}, {16, 16}}
	for _, size := range sizes {
		field := models.GradientField{
			GX: createGrid(size.width, size.height, func(x, y int) float64 { return math.Sin(float64(x*3 + y)) }),
			GY: createGrid(size.width, size.height, func(x, y int) float64 { return math.Cos(float64(x + 2*y)) }),
		}
		surface, err := SolvePoisson(field, DefaultFlatEpsilon)
		if err != nil {
			t.Fatalf("%dx%d: failed to solve: %v", size.width, size.height, err)
		}
		if surface.Height.Width != size.width || surface.Height.Height != size.height {
			t.Errorf("Expected %dx%d, got %dx%d", size.width, size.height, surface.Height.Width, surface.Height.Height)
		}
		lo, hi := surface.Height.MinMax()
		if lo < 0 || hi > 1 {
			t.Errorf("%dx%d: expected heights in [0,1], got [%f,%f]", size.width, size.height, lo, hi)
		}
		if !surface.Flat && (lo != 0 || math.Abs(hi-1) > 1e-12) {
			t.Errorf("%dx%d: expected normalized range, got [%f,%f]", size.width, size.height, lo, hi)
		}
	}
}

// TestSolvePoisson_Checkerboard runs a 3x3 checkerboard through the Sobel
// extractor and expects a surface that is not flat
func TestSolvePoisson_Checkerboard(t *testing.T) {
	board := createGrid(3, 3, func(x, y int) float64 { return float64((x + y) % 2) })

	field, err := gradient.Extract(board)
	if err != nil {
		t.Fatalf("Failed to extract gradients: %v", err)
	}

	surface, err := SolvePoisson(field, DefaultFlatEpsilon)
	if err != nil {
		t.Fatalf("Failed to solve: %v", err)
	}
	if surface.Flat || surface.RawRange <= 0 {
		t.Errorf("Expected a non-trivial surface, range %g", surface.RawRange)
	}
	if math.IsNaN(surface.RawRange) || math.IsInf(surface.RawRange, 0) {
		t.Errorf("Expected a finite range, got %g", surface.RawRange)
	}
	if surface.NonFinite {
		t.Errorf("Expected a finite solve for a checkerboard")
	}
}

// TestSolvePoisson_SmoothInputs verifies ordinary images solve without
// being marked non-finite, whatever their imaginary residue
func TestSolvePoisson_SmoothInputs(t *testing.T) {
	patterns := map[string]func(x, y int) float64{
		"bump": func(x, y int) float64 {
			dx, dy := float64(x-32)/16, float64(y-24)/12
			return math.Exp(-(dx*dx + dy*dy))
		},
		"ramp": func(x, y int) float64 { return float64(x) / 63 },
		"sine": func(x, y int) float64 { return 0.5 + 0.5*math.Sin(float64(x)/5)*math.Cos(float64(y)/7) },
	}

	for name, pattern := range patterns {
		field, err := gradient.Extract(createGrid(64, 48, pattern))
		if err != nil {
			t.Fatalf("%s: failed to extract gradients: %v", name, err)
		}
		surface, err := SolvePoisson(field, DefaultFlatEpsilon)
		if err != nil {
			t.Fatalf("%s: failed to solve: %v", name, err)
		}
		if surface.NonFinite {
			t.Errorf("%s: expected a finite solve", name)
		}
		if surface.Flat {
			t.Errorf("%s: expected a non-flat surface", name)
		}
		if math.IsNaN(surface.ImagResidue) || math.IsInf(surface.ImagResidue, 0) {
			t.Errorf("%s: expected a finite residue, got %g", name, surface.ImagResidue)
		}
	}
}

// TestSolvePoisson_NonFinite verifies NaN and Inf gradients give a flat
// surface marked non-finite instead of propagating
func TestSolvePoisson_NonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		field := models.GradientField{
			GX: createGrid(8, 6, func(x, y int) float64 { return float64(x) }),
			GY: models.NewGrid(8, 6),
		}
		field.GY.Set(3, 2, bad)

		surface, err := SolvePoisson(field, DefaultFlatEpsilon)
		if err != nil {
			t.Fatalf("Unexpected error for %g: %v", bad, err)
		}
		if !surface.NonFinite || !surface.Flat {
			t.Errorf("Expected a flat non-finite surface for %g, got %+v", bad, surface)
		}
		if surface.Height.Width != 8 || surface.Height.Height != 6 {
			t.Fatalf("Expected 8x6, got %dx%d", surface.Height.Width, surface.Height.Height)
		}
		for i, v := range surface.Height.Data {
			if v != 0 {
				t.Fatalf("Expected zero height at %d for %g, got %f", i, bad, v)
			}
		}
	}
}

// TestSolvePoisson_Errors verifies the input validation
func TestSolvePoisson_Errors(t *testing.T) {
	_, err := SolvePoisson(models.GradientField{}, DefaultFlatEpsilon)
	if !errors.Is(err, ErrEmptyField) {
		t.Errorf("Expected ErrEmptyField, got %v", err)
	}

	field := models.GradientField{GX: models.NewGrid(3, 3), GY: models.NewGrid(3, 4)}
	_, err = SolvePoisson(field, DefaultFlatEpsilon)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestSpectrumMagnitude verifies the log-magnitude dump keeps the grid shape
func TestSpectrumMagnitude(t *testing.T) {
	g := createGrid(5, 4, func(x, y int) float64 { return 1 })
	mag := spectrumMagnitude(g)
	if mag.Width != 5 || mag.Height != 4 {
		t.Fatalf("Expected 5x4, got %dx%d", mag.Width, mag.Height)
	}
	if want := math.Log1p(20); math.Abs(mag.At(0, 0)-want) > 1e-9 {
		t.Errorf("Expected DC magnitude %f, got %f", want, mag.At(0, 0))
	}
}
