package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/palette/moreland"

	"lunarterrain/internal/models"
)

// Hazard map colours, one per tier.
var (
	SafeColor     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ModerateColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	DangerColor   = color.RGBA{R: 255, G: 0, B: 0, A: 255}

	PathColor = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	ZoneColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// Viewer renders the products of one reconstruction: the elevation surface,
// its slope and the hazard tiers.
type Viewer struct {
	elevation models.Grid
	slope     models.Grid
	tiers     models.TierGrid
}

// NewViewer creates a viewer over grids that share dimensions
func NewViewer(elevation, slope models.Grid, tiers models.TierGrid) *Viewer {
	return &Viewer{
		elevation: elevation,
		slope:     slope,
		tiers:     tiers,
	}
}

// ElevationImage renders the elevation min-max scaled to 16-bit gray
func (v *Viewer) ElevationImage() *image.Gray16 {
	norm := v.elevation.Normalized(0)
	img := image.NewGray16(image.Rect(0, 0, norm.Width, norm.Height))
	for y := 0; y < norm.Height; y++ {
		for x := 0; x < norm.Width; x++ {
			value := uint16(math.Max(0, math.Min(65535, norm.At(x, y)*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// SlopeImage renders slope angles on a fixed 0-90 degree gray scale
func (v *Viewer) SlopeImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, v.slope.Width, v.slope.Height))
	for y := 0; y < v.slope.Height; y++ {
		for x := 0; x < v.slope.Width; x++ {
			value := math.Max(0, math.Min(255, v.slope.At(x, y)/90*255))
			img.SetGray(x, y, color.Gray{Y: uint8(value)})
		}
	}
	return img
}

// SlopeColormap renders the slope normalized by its own range through a
// diverging blue-red colour map.
func (v *Viewer) SlopeColormap() (*image.RGBA, error) {
	norm := v.slope.Normalized(0)
	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)

	img := image.NewRGBA(image.Rect(0, 0, norm.Width, norm.Height))
	for y := 0; y < norm.Height; y++ {
		for x := 0; x < norm.Width; x++ {
			c, err := cm.At(norm.At(x, y))
			if err != nil {
				return nil, fmt.Errorf("colour map at (%d,%d): %w", x, y, err)
			}
			img.Set(x, y, c)
		}
	}
	return img, nil
}

// HazardMap renders each cell in its tier colour
func (v *Viewer) HazardMap() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, v.tiers.Width, v.tiers.Height))
	for y := 0; y < v.tiers.Height; y++ {
		for x := 0; x < v.tiers.Width; x++ {
			switch v.tiers.At(x, y) {
			case models.Safe:
				img.SetRGBA(x, y, SafeColor)
			case models.Moderate:
				img.SetRGBA(x, y, ModerateColor)
			default:
				img.SetRGBA(x, y, DangerColor)
			}
		}
	}
	return img
}

// OverlayZones outlines each zone's bounding box on img
func OverlayZones(img *image.RGBA, zones []models.LandingZone) {
	for _, z := range zones {
		for x := z.ColStart; x < z.ColEnd; x++ {
			img.SetRGBA(x, z.RowStart, ZoneColor)
			img.SetRGBA(x, z.RowEnd-1, ZoneColor)
		}
		for y := z.RowStart; y < z.RowEnd; y++ {
			img.SetRGBA(z.ColStart, y, ZoneColor)
			img.SetRGBA(z.ColEnd-1, y, ZoneColor)
		}
	}
}

// OverlayPath marks every path cell on img
func OverlayPath(img *image.RGBA, path models.Path) {
	for _, p := range path {
		img.SetRGBA(p.X, p.Y, PathColor)
	}
}

// ExtractProfile returns the elevation along one row ("y") or column ("x")
func (v *Viewer) ExtractProfile(axis string, position int) ([]float64, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	switch axis {
	case "x", "X":
		if position >= v.elevation.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.elevation.Width)
		}
		profile := make([]float64, v.elevation.Height)
		for y := range profile {
			profile[y] = v.elevation.At(position, y)
		}
		return profile, nil

	case "y", "Y":
		if position >= v.elevation.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.elevation.Height)
		}
		profile := make([]float64, v.elevation.Width)
		copy(profile, v.elevation.Data[position*v.elevation.Width:])
		return profile, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x or y)", axis)
	}
}

// PathProfile returns the elevation at each path cell
func (v *Viewer) PathProfile(path models.Path) []float64 {
	profile := make([]float64, len(path))
	for i, p := range path {
		profile[i] = v.elevation.At(p.X, p.Y)
	}
	return profile
}

// ExtractRegion copies a rectangular window of the elevation grid
func (v *Viewer) ExtractRegion(startX, startY, sizeX, sizeY int) (models.Grid, error) {
	if startX < 0 || startY < 0 {
		return models.Grid{}, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 {
		return models.Grid{}, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.elevation.Width || startY+sizeY > v.elevation.Height {
		return models.Grid{}, fmt.Errorf("region extends beyond grid boundaries")
	}

	region := models.NewGrid(sizeX, sizeY)
	for y := 0; y < sizeY; y++ {
		copy(region.Data[y*sizeX:(y+1)*sizeX], v.elevation.Data[(startY+y)*v.elevation.Width+startX:])
	}
	return region, nil
}

// SaveImage writes img as PNG, or as JPEG when the name ends in .jpg/.jpeg
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// SaveAll writes the elevation, slope, colour-mapped slope and hazard map
// images into outputDir. Zones and path, when given, are drawn on a copy of
// the hazard map saved as hazard_overlay.png.
func (v *Viewer) SaveAll(outputDir string, zones []models.LandingZone, path models.Path) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	slopeColors, err := v.SlopeColormap()
	if err != nil {
		return err
	}
	hazard := v.HazardMap()

	images := []struct {
		name string
		img  image.Image
	}{
		{"elevation.png", v.ElevationImage()},
		{"slope.png", v.SlopeImage()},
		{"slope_colormap.png", slopeColors},
		{"hazard_map.png", hazard},
	}

	if len(zones) > 0 || len(path) > 0 {
		overlay := image.NewRGBA(hazard.Bounds())
		copy(overlay.Pix, hazard.Pix)
		OverlayZones(overlay, zones)
		OverlayPath(overlay, path)
		images = append(images, struct {
			name string
			img  image.Image
		}{"hazard_overlay.png", overlay})
	}

	for _, im := range images {
		if err := SaveImage(im.img, filepath.Join(outputDir, im.name)); err != nil {
			return fmt.Errorf("failed to save %s: %w", im.name, err)
		}
	}
	return nil
}
