package reconstruction

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs a 2D discrete Fourier transform of a row-major complex grid.
// Rows are transformed first, then columns. Gonum's complex FFT handles any
// length, so width and height need not be powers of two.
//
// The forward transform is unnormalized; the inverse divides by width*height
// so that fft2D(fft2D(x, false), true) == x.
func fft2D(data []complex128, width, height int, inverse bool) []complex128 {
	result := make([]complex128, width*height)
	copy(result, data)

	rowFFT := fourier.NewCmplxFFT(width)
	rowIn := make([]complex128, width)
	rowOut := make([]complex128, width)
	for y := 0; y < height; y++ {
		copy(rowIn, result[y*width:(y+1)*width])
		transform(rowFFT, rowOut, rowIn, inverse)
		copy(result[y*width:(y+1)*width], rowOut)
	}

	colFFT := fourier.NewCmplxFFT(height)
	colIn := make([]complex128, height)
	colOut := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colIn[y] = result[y*width+x]
		}
		transform(colFFT, colOut, colIn, inverse)
		for y := 0; y < height; y++ {
			result[y*width+x] = colOut[y]
		}
	}

	if inverse {
		scale := complex(1/float64(width*height), 0)
		for i := range result {
			result[i] *= scale
		}
	}

	return result
}

func transform(fft *fourier.CmplxFFT, dst, src []complex128, inverse bool) {
	if inverse {
		fft.Sequence(dst, src)
		return
	}
	fft.Coefficients(dst, src)
}

// toComplex lifts a real grid into the complex plane
func toComplex(data []float64) []complex128 {
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = complex(v, 0)
	}
	return out
}
