// Package stl turns an elevation grid into a triangle mesh.
package stl

import (
	"errors"
	"math"

	"github.com/unixpickle/model3d/model3d"

	"lunarterrain/internal/models"
)

// ErrTooSmall is returned for grids without a single 2x2 quad.
var ErrTooSmall = errors.New("stl: grid needs at least 2x2 cells")

// Triangle is one mesh facet
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// HeightfieldMesh triangulates a grid with two facets per quad. Elevation is
// the up axis: cell (x, y) becomes vertex (x*scaleXY, elevation*scaleZ, y*scaleXY).
type HeightfieldMesh struct {
	grid    models.Grid
	scaleXY float64
	scaleZ  float64
}

// NewHeightfieldMesh creates a mesh builder with unit scales
func NewHeightfieldMesh(grid models.Grid) *HeightfieldMesh {
	return &HeightfieldMesh{
		grid:    grid,
		scaleXY: 1,
		scaleZ:  1,
	}
}

// SetScale sets the horizontal cell size and the elevation multiplier
func (h *HeightfieldMesh) SetScale(xy, z float64) {
	h.scaleXY = xy
	h.scaleZ = z
}

func (h *HeightfieldMesh) vertex(x, y int) [3]float32 {
	return [3]float32{
		float32(float64(x) * h.scaleXY),
		float32(h.grid.At(x, y) * h.scaleZ),
		float32(float64(y) * h.scaleXY),
	}
}

// GenerateTriangles returns 2*(W-1)*(H-1) facets wound so that normals point
// up (+Y) on flat ground.
func (h *HeightfieldMesh) GenerateTriangles() []Triangle {
	w, ht := h.grid.Width, h.grid.Height
	if w < 2 || ht < 2 {
		return nil
	}

	triangles := make([]Triangle, 0, 2*(w-1)*(ht-1))
	for y := 0; y < ht-1; y++ {
		for x := 0; x < w-1; x++ {
			p00 := h.vertex(x, y)
			p10 := h.vertex(x+1, y)
			p01 := h.vertex(x, y+1)
			p11 := h.vertex(x+1, y+1)

			triangles = append(triangles,
				newTriangle(p00, p11, p10),
				newTriangle(p00, p01, p11),
			)
		}
	}
	return triangles
}

func newTriangle(a, b, c [3]float32) Triangle {
	return Triangle{
		Normal:  facetNormal(a, b, c),
		Vertex1: a,
		Vertex2: b,
		Vertex3: c,
	}
}

func facetNormal(a, b, c [3]float32) [3]float32 {
	ux, uy, uz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	vx, vy, vz := c[0]-a[0], c[1]-a[1], c[2]-a[2]

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx

	mag := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))
	if mag == 0 {
		return [3]float32{}
	}
	return [3]float32{nx / mag, ny / mag, nz / mag}
}

// Mesh converts the facets into a model3d mesh.
func (h *HeightfieldMesh) Mesh() (*model3d.Mesh, error) {
	if h.grid.Width < 2 || h.grid.Height < 2 {
		return nil, ErrTooSmall
	}

	facets := h.GenerateTriangles()
	triangles := make([]*model3d.Triangle, len(facets))
	for i, f := range facets {
		triangles[i] = &model3d.Triangle{coord(f.Vertex1), coord(f.Vertex2), coord(f.Vertex3)}
	}
	return model3d.NewMeshTriangles(triangles), nil
}

func coord(v [3]float32) model3d.Coord3D {
	return model3d.Coord3D{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// Save writes the mesh as an STL file.
func (h *HeightfieldMesh) Save(path string) error {
	mesh, err := h.Mesh()
	if err != nil {
		return err
	}
	return mesh.SaveGroupedSTL(path)
}
