package pathfind

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/slope"
)

type nodeState uint8

const (
	unseen nodeState = iota
	inOpen
	inClosed
)

// node is the per-cell search record. Nodes live in an arena indexed by the
// cell's row-major offset and refer to their predecessor by offset.
type node struct {
	g      float64
	parent int
	state  nodeState
}

type move struct {
	dx, dy int
	cost   float64
}

// moves lists the 8 neighbour offsets, orthogonal first.
var moves = [8]move{
	{1, 0, 1}, {0, 1, 1}, {-1, 0, 1}, {0, -1, 1},
	{1, 1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {-1, -1, math.Sqrt2}, {1, -1, math.Sqrt2},
}

// Planner searches one elevation grid. It holds no per-search state, so a
// single Planner may serve concurrent Find calls.
type Planner struct {
	elev models.Grid
	opts Options
}

// NewPlanner validates the grid and options and returns a Planner.
func NewPlanner(elev models.Grid, opts ...Option) (*Planner, error) {
	if elev.Empty() {
		return nil, ErrEmptyGrid
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.StepX <= 0 || cfg.StepY <= 0 || cfg.ElevationPenalty < 0 {
		return nil, fmt.Errorf("%w: dx=%g dy=%g penalty=%g", ErrInvalidStep, cfg.StepX, cfg.StepY, cfg.ElevationPenalty)
	}
	return &Planner{elev: elev, opts: cfg}, nil
}

// Traversable reports whether a move into (x,y) is allowed under maxSlope.
func (p *Planner) Traversable(x, y int, maxSlope float64) bool {
	return p.elev.InBounds(x, y) && slope.At(p.elev, x, y, p.opts.StepX, p.opts.StepY) <= maxSlope
}

// Find runs A* from start to goal. found is false, with a nil error, when the
// goal is unreachable under maxSlope. The context is checked before every pop.
func (p *Planner) Find(ctx context.Context, start, goal models.Point, maxSlope float64) (Result, bool, error) {
	if err := p.validate(start, goal, maxSlope); err != nil {
		return Result{}, false, err
	}
	if start == goal {
		return Result{Path: models.Path{start}}, true, nil
	}

	elev := p.elev
	nodes := make([]node, len(elev.Data))
	for i := range nodes {
		nodes[i].parent = -1
	}

	var (
		pq  = make(openSet, 0, 64)
		seq uint64
		res Result
	)
	push := func(cell int, g float64) {
		x, y := elev.Coordinate(cell)
		h := float64(abs(x-goal.X) + abs(y-goal.Y))
		heap.Push(&pq, &openItem{cell: cell, g: g, f: g + h, h: h, seq: seq})
		seq++
	}

	startIdx := elev.Index(start.X, start.Y)
	goalIdx := elev.Index(goal.X, goal.Y)
	nodes[startIdx].state = inOpen
	push(startIdx, 0)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}

		item := heap.Pop(&pq).(*openItem)
		cur := &nodes[item.cell]
		if cur.state == inClosed || item.g > cur.g {
			continue
		}
		cur.state = inClosed
		res.Expanded++

		if item.cell == goalIdx {
			res.Path = tracePath(elev, nodes, goalIdx)
			res.Cost = cur.g
			return res, true, nil
		}

		cx, cy := elev.Coordinate(item.cell)
		for _, m := range moves {
			nx, ny := cx+m.dx, cy+m.dy
			if !elev.InBounds(nx, ny) {
				continue
			}
			ni := elev.Index(nx, ny)
			next := &nodes[ni]
			if next.state == inClosed {
				continue
			}
			if slope.At(elev, nx, ny, p.opts.StepX, p.opts.StepY) > maxSlope {
				continue
			}

			g := cur.g + m.cost + p.opts.ElevationPenalty*math.Abs(elev.Data[ni]-elev.Data[item.cell])
			if next.state == inOpen && g >= next.g {
				continue
			}
			next.g = g
			next.parent = item.cell
			next.state = inOpen
			push(ni, g)
		}
	}

	return res, false, nil
}

// FindPath plans on elev with steps dx, dy and the default penalty. It
// returns a nil path when the goal is unreachable.
func FindPath(ctx context.Context, elev models.Grid, start, goal models.Point, maxSlope, dx, dy float64) (models.Path, error) {
	p, err := NewPlanner(elev, WithSteps(dx, dy))
	if err != nil {
		return nil, err
	}
	res, found, err := p.Find(ctx, start, goal, maxSlope)
	if err != nil || !found {
		return nil, err
	}
	return res.Path, nil
}

func (p *Planner) validate(start, goal models.Point, maxSlope float64) error {
	if !p.elev.InBounds(start.X, start.Y) {
		return fmt.Errorf("%w: start %v in %dx%d grid", ErrOutOfBounds, start, p.elev.Width, p.elev.Height)
	}
	if !p.elev.InBounds(goal.X, goal.Y) {
		return fmt.Errorf("%w: goal %v in %dx%d grid", ErrOutOfBounds, goal, p.elev.Width, p.elev.Height)
	}
	if !(maxSlope > 0 && maxSlope <= 90) {
		return fmt.Errorf("%w: got %g", ErrInvalidSlope, maxSlope)
	}
	return nil
}

// tracePath follows parent offsets from goal back to start and reverses them.
func tracePath(elev models.Grid, nodes []node, goal int) models.Path {
	var path models.Path
	for c := goal; c != -1; c = nodes[c].parent {
		x, y := elev.Coordinate(c)
		path = append(path, models.Point{X: x, Y: y})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
