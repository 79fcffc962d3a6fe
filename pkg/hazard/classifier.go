// Package hazard classifies terrain cells into safety tiers by slope
// percentile rank and segments contiguous safe regions into landing zones.
//
// Tier boundaries are recomputed for every slope grid, so classification is
// always relative to the terrain's own slope distribution rather than fixed
// angles.
package hazard

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"lunarterrain/internal/models"
)

// Default percentile cuts between Safe/Moderate and Moderate/Danger.
const (
	DefaultSafePercentile     = 33.0
	DefaultModeratePercentile = 66.0
)

// FlatSlopeRange is the slope dynamic range at or below which the terrain is
// uniform and every cell normalizes to zero, so all cells are Safe.
const FlatSlopeRange = 1e-6

// ErrEmptySlope indicates a slope grid with a zero dimension.
var ErrEmptySlope = errors.New("hazard: slope grid must have at least one row and one column")

// Thresholds are the tier cut points on the normalized [0,1] slope scale
type Thresholds struct {
	Low float64
	Mid float64
}

// Classification is the per-cell tier assignment with the cuts that produced it
type Classification struct {
	Tiers      models.TierGrid
	Thresholds Thresholds

	// Normalized is the slope grid min-max scaled to [0,1]
	Normalized models.Grid
}

// ComputeThresholds normalizes the slope grid by its own range and returns
// the empirical low/mid percentile values of the normalized distribution.
func ComputeThresholds(slopeGrid models.Grid, lowPct, midPct float64) (Thresholds, models.Grid, error) {
	if slopeGrid.Empty() {
		return Thresholds{}, models.Grid{}, ErrEmptySlope
	}
	if lowPct <= 0 || midPct >= 100 || lowPct >= midPct {
		return Thresholds{}, models.Grid{}, fmt.Errorf("hazard: invalid percentiles %g/%g", lowPct, midPct)
	}

	norm := slopeGrid.Normalized(FlatSlopeRange)
	sorted := make([]float64, len(norm.Data))
	copy(sorted, norm.Data)
	sort.Float64s(sorted)

	return Thresholds{
		Low: stat.Quantile(lowPct/100, stat.Empirical, sorted, nil),
		Mid: stat.Quantile(midPct/100, stat.Empirical, sorted, nil),
	}, norm, nil
}

// Classify assigns tiers: at or below the low cut is Safe, above it and at or
// below the mid cut is Moderate, above the mid cut is Danger.
func Classify(slopeGrid models.Grid, lowPct, midPct float64) (Classification, error) {
	th, norm, err := ComputeThresholds(slopeGrid, lowPct, midPct)
	if err != nil {
		return Classification{}, err
	}

	tiers := models.TierGrid{
		Width:  norm.Width,
		Height: norm.Height,
		Tiers:  make([]models.HazardTier, len(norm.Data)),
	}
	for i, v := range norm.Data {
		switch {
		case v <= th.Low:
			tiers.Tiers[i] = models.Safe
		case v <= th.Mid:
			tiers.Tiers[i] = models.Moderate
		default:
			tiers.Tiers[i] = models.Danger
		}
	}

	return Classification{
		Tiers:      tiers,
		Thresholds: th,
		Normalized: norm,
	}, nil
}
