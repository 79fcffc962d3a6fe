package reconstruction

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"lunarterrain/internal/models"
)

// DefaultFlatEpsilon is the dynamic range below which a solved surface is flat.
const DefaultFlatEpsilon = 1e-6

var (
	// ErrEmptyField indicates a gradient field with a zero dimension.
	ErrEmptyField = errors.New("reconstruction: gradient field must have at least one row and one column")

	// ErrShapeMismatch indicates gx and gy do not share dimensions.
	ErrShapeMismatch = errors.New("reconstruction: gx and gy must have identical dimensions")
)

// Surface is the output of a Poisson solve
type Surface struct {
	// Height is the relative surface, min-max normalized to [0,1]
	Height models.Grid

	// RawRange is the dynamic range of the real heightmap before normalization
	RawRange float64

	// ImagResidue is max|imag| / max|real| of the inverse transform.
	// The cos(πu/W) denominator is not conjugate-symmetric, so ordinary
	// inputs already sit between roughly 0.5 and 2.5. It is kept as a
	// diagnostic only.
	ImagResidue float64

	// Flat is set when RawRange fell below the flat epsilon
	Flat bool

	// NonFinite is set when the field or the solved heightmap held NaN or
	// Inf values. Height is then all zero.
	NonFinite bool
}

// Divergence computes (gx[y,x]-gx[y,x+1]) + (gy[y,x]-gy[y+1,x]).
// The last column and last row receive no contribution from the missing neighbour.
func Divergence(field models.GradientField) models.Grid {
	w, h := field.GX.Width, field.GX.Height
	div := models.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var d float64
			if x < w-1 {
				d += field.GX.At(x, y) - field.GX.At(x+1, y)
			}
			if y < h-1 {
				d += field.GY.At(x, y) - field.GY.At(x, y+1)
			}
			div.Set(x, y, d)
		}
	}
	return div
}

// laplacianEigenvalue is the frequency-domain denominator for bin (u,v).
// The zero-frequency bin is degenerate and forced to 1; the global offset it
// carries is removed by the normalization that follows the solve.
func laplacianEigenvalue(u, v, width, height int) float64 {
	if u == 0 && v == 0 {
		return 1
	}
	return 2*math.Cos(math.Pi*float64(u)/float64(width)) - 2 +
		2*math.Cos(math.Pi*float64(v)/float64(height)) - 2
}

// SolvePoisson recovers a relative height field whose gradient approximates
// (gx,gy) by solving ∇²z = div(gx,gy) in the frequency domain.
// eps is the flat-surface threshold; pass DefaultFlatEpsilon when unsure.
func SolvePoisson(field models.GradientField, eps float64) (Surface, error) {
	if field.GX.Empty() || field.GY.Empty() {
		return Surface{}, ErrEmptyField
	}
	if !field.GX.SameShape(field.GY) {
		return Surface{}, ErrShapeMismatch
	}

	w, h := field.GX.Width, field.GX.Height
	if !allFinite(field.GX.Data) || !allFinite(field.GY.Data) {
		return nonFiniteSurface(w, h), nil
	}
	div := Divergence(field)

	spectrum := fft2D(toComplex(div.Data), w, h, false)
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			spectrum[v*w+u] /= complex(laplacianEigenvalue(u, v, w, h), 0)
		}
	}
	spatial := fft2D(spectrum, w, h, true)

	heightmap := models.NewGrid(w, h)
	var maxImag float64
	for i, c := range spatial {
		heightmap.Data[i] = real(c)
		if a := math.Abs(imag(c)); a > maxImag {
			maxImag = a
		}
	}

	if !allFinite(heightmap.Data) {
		return nonFiniteSurface(w, h), nil
	}

	surface := Surface{
		ImagResidue: imagResidue(maxImag, heightmap.Data),
	}
	lo, hi := heightmap.MinMax()
	surface.RawRange = hi - lo
	surface.Flat = surface.RawRange <= eps
	surface.Height = heightmap.Normalized(eps)

	return surface, nil
}

func nonFiniteSurface(w, h int) Surface {
	return Surface{Height: models.NewGrid(w, h), Flat: true, NonFinite: true}
}

func allFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// imagResidue expresses the imaginary peak relative to the real peak so the
// measure does not depend on the input's intensity scale.
func imagResidue(maxImag float64, re []float64) float64 {
	maxReal := math.Max(math.Abs(floats.Min(re)), math.Abs(floats.Max(re)))
	if maxReal == 0 {
		return maxImag
	}
	return maxImag / maxReal
}

// spectrumMagnitude returns |F(u,v)| of a real grid, used for the
// intermediary spectrum dump.
func spectrumMagnitude(g models.Grid) models.Grid {
	spectrum := fft2D(toComplex(g.Data), g.Width, g.Height, false)
	out := models.NewGrid(g.Width, g.Height)
	for i, c := range spectrum {
		out.Data[i] = math.Log1p(cmplx.Abs(c))
	}
	return out
}
