package reconstruction

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/analysis"
	"lunarterrain/pkg/config"
	"lunarterrain/pkg/gradient"
	"lunarterrain/pkg/gridio"
	"lunarterrain/pkg/hazard"
	"lunarterrain/pkg/preprocess"
	"lunarterrain/pkg/slope"
	"lunarterrain/pkg/visualization"
)

// Params holds the reconstruction parameters.
type Params struct {
	// Preprocess selects the image steps run before gradient extraction
	Preprocess preprocess.Options

	// Scale multiplies the normalized surface to give the final elevation
	Scale float64

	// FlatEpsilon is the dynamic range below which a surface is flat
	FlatEpsilon float64

	SafePercentile     float64
	ModeratePercentile float64

	// MinZoneArea is the smallest landing zone, in cells
	MinZoneArea int

	// SaveIntermediaryResults writes images of each stage under IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// Verbose prints each pipeline step
	Verbose bool
}

// ParamsFromConfig builds Params from a loaded configuration.
func ParamsFromConfig(cfg *config.Config) *Params {
	return &Params{
		Preprocess: preprocess.Options{
			NormalizeHistogram: cfg.Processing.NormalizeHistogram,
			Denoise:            cfg.Processing.Denoise,
			MedianKernel:       cfg.Processing.MedianKernel,
			MaxDimension:       cfg.Processing.MaxDimension,
		},
		Scale:                   cfg.ExaggerationScale(),
		FlatEpsilon:             cfg.Processing.FlatEpsilon,
		SafePercentile:          cfg.Hazard.SafePercentile,
		ModeratePercentile:      cfg.Hazard.ModeratePercentile,
		MinZoneArea:             cfg.Hazard.MinZoneArea,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		Verbose:                 cfg.Output.Verbose,
	}
}

// Result is everything one reconstruction produces. It is returned to the
// caller instead of being kept on the Reconstructor, so path queries take
// their elevation grid from a Result or from the session store.
type Result struct {
	Source string

	Intensity models.Grid
	Gradients models.GradientField
	Surface   Surface

	// Elevation is the normalized surface times Params.Scale
	Elevation models.Grid
	Slope     models.Grid

	Hazard hazard.Classification
	Zones  []models.LandingZone

	// Labels maps each cell to its zone index plus one, 0 outside every zone
	Labels []int

	Stats models.TerrainStats

	// Anomalous is set when the gradient field or the solve produced
	// non-finite values; the elevation is then flat
	Anomalous bool
}

// Reconstructor runs the terrain pipeline: preprocessing, Sobel gradients,
// Poisson solve, exaggeration, slope, hazard tiers, landing zones and
// statistics. It holds no per-image state and is safe for concurrent use.
type Reconstructor struct {
	params *Params
}

// NewReconstructor creates a new reconstructor with the provided parameters.
func NewReconstructor(params *Params) *Reconstructor {
	return &Reconstructor{params: params}
}

// ProcessFile loads an image from disk and reconstructs it.
func (r *Reconstructor) ProcessFile(path string) (*Result, error) {
	img, err := preprocess.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return r.Process(filepath.Base(path), img)
}

// Process preprocesses img and runs the full pipeline on its intensity grid.
// source names the input in logs and intermediary output.
func (r *Reconstructor) Process(source string, img image.Image) (*Result, error) {
	stageDir := r.stageDir(source)
	if r.params.SaveIntermediaryResults {
		if err := os.MkdirAll(stageDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	r.step("Step 1: Preprocessing %s...", source)
	pre, err := preprocess.Run(img, r.params.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess: %w", err)
	}
	r.saveIntermediaryResult(stageDir, "01_preprocessed", pre.Gray, 0)

	return r.reconstruct(source, stageDir, pre.Intensity)
}

// ProcessGrid runs the pipeline on an intensity grid that has already been
// preprocessed.
func (r *Reconstructor) ProcessGrid(source string, intensity models.Grid) (*Result, error) {
	stageDir := r.stageDir(source)
	if r.params.SaveIntermediaryResults {
		if err := os.MkdirAll(stageDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}
	return r.reconstruct(source, stageDir, intensity)
}

func (r *Reconstructor) reconstruct(source, stageDir string, intensity models.Grid) (*Result, error) {
	res := &Result{Source: source, Intensity: intensity}

	r.step("Step 2: Extracting gradients (%dx%d)...", intensity.Width, intensity.Height)
	field, err := gradient.Extract(intensity)
	if err != nil {
		return nil, fmt.Errorf("failed to extract gradients: %w", err)
	}
	res.Gradients = field
	r.saveIntermediaryResult(stageDir, "02_gradients", field.GX, 0)
	r.saveIntermediaryResult(stageDir, "02_gradients", field.GY, 1)

	r.step("Step 3: Solving Poisson equation...")
	surface, err := SolvePoisson(field, r.params.FlatEpsilon)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct surface: %w", err)
	}
	res.Surface = surface
	if surface.NonFinite {
		res.Anomalous = true
		log.Printf("[reconstruct] %s: non-finite values in gradient field or solve; gradient field is malformed", source)
	}
	r.step("Imaginary residue %.3g", surface.ImagResidue)
	if surface.Flat {
		r.step("Surface is flat (range %.3g), elevation set to zero", surface.RawRange)
	}
	r.saveIntermediaryResult(stageDir, "03_spectrum", spectrumMagnitude(Divergence(field)), 0)

	r.step("Step 4: Scaling elevation by %.1f...", r.params.Scale)
	res.Elevation = surface.Height.Normalized(r.params.FlatEpsilon).Scaled(r.params.Scale)

	r.step("Step 5: Computing slope...")
	res.Slope = slope.Compute(res.Elevation)

	r.step("Step 6: Classifying hazards...")
	res.Hazard, err = hazard.Classify(res.Slope, r.params.SafePercentile, r.params.ModeratePercentile)
	if err != nil {
		return nil, fmt.Errorf("failed to classify hazards: %w", err)
	}

	r.step("Step 7: Detecting landing zones (min area %d)...", r.params.MinZoneArea)
	seg := hazard.Segment(res.Hazard.Tiers, r.params.MinZoneArea)
	res.Labels = seg.Labels
	res.Zones = seg.Zones
	zoneCells := analysis.ZoneCells(res.Elevation.Width, seg.Labels, len(res.Zones))
	for i := range res.Zones {
		plane, err := analysis.FitPlane(res.Elevation, zoneCells[i])
		if err != nil {
			// Thin zones along one row or column have no unique plane
			continue
		}
		res.Zones[i].TiltDegrees = plane.TiltDegrees
		res.Zones[i].Roughness = plane.Roughness
	}

	r.step("Step 8: Computing terrain statistics...")
	res.Stats = analysis.Summarize(res.Elevation, res.Slope, res.Hazard.Tiers)

	if r.params.SaveIntermediaryResults {
		r.saveProducts(stageDir, res)
	}

	if r.params.Verbose {
		fmt.Printf("%s: elevation %.2f..%.2f, mean slope %.2f°, %d landing zones\n",
			source, res.Stats.MinElevation, res.Stats.MaxElevation, res.Stats.MeanSlope, len(res.Zones))
	}
	return res, nil
}

func (r *Reconstructor) step(format string, args ...any) {
	if r.params.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// stageDir is the intermediary directory for one input; batch runs write
// each image into its own subdirectory.
func (r *Reconstructor) stageDir(source string) string {
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if name == "" || name == "." {
		return r.params.IntermediaryDir
	}
	return filepath.Join(r.params.IntermediaryDir, name)
}

// saveProducts writes the final renders, plots and the raw elevation array.
func (r *Reconstructor) saveProducts(stageDir string, res *Result) {
	dir := filepath.Join(stageDir, "04_products")
	viewer := visualization.NewViewer(res.Elevation, res.Slope, res.Hazard.Tiers)
	if err := viewer.SaveAll(dir, res.Zones, nil); err != nil {
		log.Printf("[reconstruct] failed to save products: %v", err)
		return
	}
	if err := visualization.PlotSlopeHistogram(res.Slope, filepath.Join(dir, "slope_histogram.png")); err != nil {
		log.Printf("[reconstruct] failed to plot slope histogram: %v", err)
	}
	if err := gridio.Save(filepath.Join(dir, "elevation.npy"), res.Elevation); err != nil {
		log.Printf("[reconstruct] failed to save elevation array: %v", err)
	}
}

// saveIntermediaryResult saves one stage output. Failures are logged and do
// not stop the pipeline.
func (r *Reconstructor) saveIntermediaryResult(stageDir, stage string, data any, index int) {
	if !r.params.SaveIntermediaryResults {
		return
	}

	dir := filepath.Join(stageDir, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("[reconstruct] failed to create %s: %v", dir, err)
		return
	}

	var img image.Image
	switch v := data.(type) {
	case image.Image:
		img = v
	case models.Grid:
		img = gradient.Visualize(v)
	default:
		log.Printf("[reconstruct] cannot save %T for stage %s", data, stage)
		return
	}

	filename := filepath.Join(dir, fmt.Sprintf("%03d.png", index))
	if err := visualization.SaveImage(img, filename); err != nil {
		log.Printf("[reconstruct] failed to save %s: %v", filename, err)
	}
}
