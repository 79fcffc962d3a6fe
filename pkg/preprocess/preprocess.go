// Package preprocess turns source images into the intensity grids consumed by
// the reconstruction pipeline: decoding, grayscale conversion, histogram
// equalization, median denoising and optional down-scaling.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"slices"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"lunarterrain/internal/models"
)

// ErrEvenKernel indicates a median kernel that has no centre cell.
var ErrEvenKernel = errors.New("preprocess: median kernel must be odd and positive")

// Options selects the preprocessing steps
type Options struct {
	NormalizeHistogram bool
	Denoise            bool
	MedianKernel       int

	// MaxDimension down-scales images whose longest side exceeds it; 0 disables
	MaxDimension int
}

// Result holds the processed 8-bit image and the intensity grid derived from it
type Result struct {
	Gray      *image.Gray
	Intensity models.Grid
}

// LoadImage decodes a PNG, JPEG, GIF, BMP or TIFF file
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// ToGray converts any image to 8-bit luminance with its origin at (0,0)
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return gray
}

// ToIntensity maps 8-bit luminance to [0,1]
func ToIntensity(gray *image.Gray) models.Grid {
	b := gray.Bounds()
	g := models.NewGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)/255.0)
		}
	}
	return g
}

// EqualizeHistogram spreads the 256-bin cumulative histogram over the full
// 8-bit range. The darkest occupied level maps to 0. A constant image is
// returned unchanged.
func EqualizeHistogram(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	out := image.NewGray(b)
	copy(out.Pix, gray.Pix)
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}
	if hist[first] == total {
		return out
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for v := first + 1; v < 256; v++ {
		sum += hist[v]
		lut[v] = uint8(math.Min(255, math.Round(float64(sum)*scale)))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: lut[gray.GrayAt(x, y).Y]})
		}
	}
	return out
}

// MedianBlur replaces each pixel by the median of its k×k window. Pixels
// beyond the border replicate the nearest edge pixel. k must be odd; k == 1
// returns a copy.
func MedianBlur(gray *image.Gray, k int) (*image.Gray, error) {
	if k < 1 || k%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrEvenKernel, k)
	}
	b := gray.Bounds()
	out := image.NewGray(b)
	if k == 1 {
		copy(out.Pix, gray.Pix)
		return out, nil
	}

	r := k / 2
	window := make([]uint8, 0, k*k)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				sy := clamp(y+dy, b.Min.Y, b.Max.Y-1)
				for dx := -r; dx <= r; dx++ {
					sx := clamp(x+dx, b.Min.X, b.Max.X-1)
					window = append(window, gray.GrayAt(sx, sy).Y)
				}
			}
			slices.Sort(window)
			out.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return out, nil
}

// Resize down-scales img with Catmull-Rom so its longest side is maxDim,
// preserving the aspect ratio. Images already within bounds are returned
// as-is.
func Resize(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxDim <= 0 || longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Run applies the configured steps in order: resize, grayscale, equalize,
// denoise, then converts to an intensity grid.
func Run(img image.Image, opts Options) (Result, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Result{}, fmt.Errorf("preprocess: image has zero dimension %dx%d", b.Dx(), b.Dy())
	}

	gray := ToGray(Resize(img, opts.MaxDimension))
	if opts.NormalizeHistogram {
		gray = EqualizeHistogram(gray)
	}
	if opts.Denoise {
		var err error
		if gray, err = MedianBlur(gray, opts.MedianKernel); err != nil {
			return Result{}, err
		}
	}

	return Result{Gray: gray, Intensity: ToIntensity(gray)}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
