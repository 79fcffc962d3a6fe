// Package pathfind plans slope-constrained routes across an elevation grid.
//
// The planner runs A* over the 8-connected grid. A move into a cell is allowed
// only when that cell's local slope, recomputed from the elevation with the
// planner's own step sizes, stays within the query's bound.
//
// Move cost:
//
//	base  = 1 (orthogonal) or √2 (diagonal)
//	cost  = base + penalty·|z(to) - z(from)|
//
// The heuristic is the Manhattan distance to the goal. Nodes leave the open
// set ordered by f = g + h, then by lower h, then by insertion order, so a
// search is fully deterministic.
//
// Errors (sentinel):
//
//	– ErrEmptyGrid    the elevation grid has a zero dimension.
//	– ErrOutOfBounds  start or goal lies outside the grid.
//	– ErrInvalidSlope the slope bound is outside (0,90].
//	– ErrInvalidStep  a step size or the penalty is not usable.
//
// "No path" is not an error: Find reports it with found == false.
package pathfind

import (
	"errors"

	"lunarterrain/internal/models"
)

// Default planner parameters.
const (
	DefaultStep             = 1.0
	DefaultElevationPenalty = 0.5
)

var (
	// ErrEmptyGrid indicates an elevation grid with a zero dimension.
	ErrEmptyGrid = errors.New("pathfind: elevation grid must have at least one row and one column")

	// ErrOutOfBounds indicates a start or goal outside the grid.
	ErrOutOfBounds = errors.New("pathfind: position outside the elevation grid")

	// ErrInvalidSlope indicates a slope bound outside (0,90] degrees.
	ErrInvalidSlope = errors.New("pathfind: max slope must be in (0,90] degrees")

	// ErrInvalidStep indicates a non-positive grid step or a negative penalty.
	ErrInvalidStep = errors.New("pathfind: steps must be positive and penalty non-negative")
)

// Options configures a Planner.
type Options struct {
	StepX            float64 // horizontal spacing between columns
	StepY            float64 // spacing between rows
	ElevationPenalty float64 // weight of |Δz| in the move cost
}

// Option is a functional option for NewPlanner.
type Option func(*Options)

// DefaultOptions returns unit steps and the default elevation penalty.
func DefaultOptions() Options {
	return Options{
		StepX:            DefaultStep,
		StepY:            DefaultStep,
		ElevationPenalty: DefaultElevationPenalty,
	}
}

// WithSteps sets the grid spacings used for the local slope.
func WithSteps(dx, dy float64) Option {
	return func(o *Options) {
		o.StepX, o.StepY = dx, dy
	}
}

// WithElevationPenalty sets the weight of the elevation change in the move cost.
func WithElevationPenalty(p float64) Option {
	return func(o *Options) {
		o.ElevationPenalty = p
	}
}

// Result is a successful search.
type Result struct {
	// Path runs from start to goal, both included
	Path models.Path

	// Cost is the accumulated g of the goal
	Cost float64

	// Expanded counts nodes moved to the closed set
	Expanded int
}
