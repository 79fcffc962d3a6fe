package hazard

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"lunarterrain/internal/models"
)

// DefaultMinZoneArea is the smallest safe region, in cells, reported as a zone.
const DefaultMinZoneArea = 500

// conn4 are the row/column neighbour offsets used for segmentation.
var conn4 = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Segmentation is the result of labeling the Safe tier
type Segmentation struct {
	// Zones are the retained components in scan order of their first cell
	Zones []models.LandingZone

	// Labels holds zone index+1 for cells of a retained zone and 0 elsewhere
	Labels []int
}

// DetectLandingZones returns the 4-connected Safe regions whose area is at
// least minArea. Smaller regions are dropped, never merged.
func DetectLandingZones(tiers models.TierGrid, minArea int) []models.LandingZone {
	return Segment(tiers, minArea).Zones
}

// Segment labels 4-connected components of Safe cells with a BFS per
// component, keeping those with area >= minArea. The zone centre is the
// bounding box midpoint, not the area centroid.
func Segment(tiers models.TierGrid, minArea int) Segmentation {
	w, h := tiers.Width, tiers.Height
	seg := Segmentation{Labels: make([]int, w*h)}
	seen := make([]bool, w*h)
	var queue, comp []int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i0 := y*w + x
			if seen[i0] || tiers.Tiers[i0] != models.Safe {
				continue
			}

			queue = append(queue[:0], i0)
			comp = comp[:0]
			seen[i0] = true
			zone := models.LandingZone{RowStart: y, ColStart: x, RowEnd: y + 1, ColEnd: x + 1}

			for qi := 0; qi < len(queue); qi++ {
				u := queue[qi]
				comp = append(comp, u)
				ux, uy := u%w, u/w
				zone.RowStart = min(zone.RowStart, uy)
				zone.RowEnd = max(zone.RowEnd, uy+1)
				zone.ColStart = min(zone.ColStart, ux)
				zone.ColEnd = max(zone.ColEnd, ux+1)

				for _, d := range conn4 {
					vx, vy := ux+d[0], uy+d[1]
					if vx < 0 || vy < 0 || vx >= w || vy >= h {
						continue
					}
					vi := vy*w + vx
					if !seen[vi] && tiers.Tiers[vi] == models.Safe {
						seen[vi] = true
						queue = append(queue, vi)
					}
				}
			}

			if len(comp) < minArea {
				continue
			}
			zone.Area = len(comp)
			zone.CenterRow = (zone.RowStart + zone.RowEnd) / 2
			zone.CenterCol = (zone.ColStart + zone.ColEnd) / 2
			seg.Zones = append(seg.Zones, zone)

			label := len(seg.Zones)
			for _, idx := range comp {
				seg.Labels[idx] = label
			}
		}
	}
	return seg
}

// zoneCenter is a landing zone centre stored in the kd-tree
type zoneCenter struct {
	X, Y float64
	Zone int
}

// Compare implements the kdtree.Comparable interface
func (c zoneCenter) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	q := o.(zoneCenter)
	switch d {
	case 0:
		return c.X - q.X
	case 1:
		return c.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (c zoneCenter) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two centres
func (c zoneCenter) Distance(o kdtree.Comparable) float64 {
	q := o.(zoneCenter)
	dx, dy := c.X-q.X, c.Y-q.Y
	return dx*dx + dy*dy
}

// zoneCenters is a collection of zoneCenter that satisfies kdtree.Interface
type zoneCenters []zoneCenter

func (p zoneCenters) Index(i int) kdtree.Comparable         { return p[i] }
func (p zoneCenters) Len() int                              { return len(p) }
func (p zoneCenters) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p zoneCenters) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centerPlane{zoneCenters: p, Dim: d}, kdtree.MedianOfRandoms(centerPlane{zoneCenters: p, Dim: d}, 100))
}

// centerPlane implements sort.Interface and kdtree.SortSlicer for zoneCenters
type centerPlane struct {
	zoneCenters
	kdtree.Dim
}

func (p centerPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.zoneCenters[i].X < p.zoneCenters[j].X
	case 1:
		return p.zoneCenters[i].Y < p.zoneCenters[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p centerPlane) Slice(start, end int) kdtree.SortSlicer {
	return centerPlane{zoneCenters: p.zoneCenters[start:end], Dim: p.Dim}
}

func (p centerPlane) Swap(i, j int) {
	p.zoneCenters[i], p.zoneCenters[j] = p.zoneCenters[j], p.zoneCenters[i]
}

// ZoneIndex answers nearest-landing-zone queries over zone centres
type ZoneIndex struct {
	zones []models.LandingZone
	tree  *kdtree.Tree
}

// NewZoneIndex builds a kd-tree over the zone centres
func NewZoneIndex(zones []models.LandingZone) *ZoneIndex {
	idx := &ZoneIndex{zones: zones}
	if len(zones) == 0 {
		return idx
	}
	centers := make(zoneCenters, len(zones))
	for i, z := range zones {
		centers[i] = zoneCenter{X: float64(z.CenterCol), Y: float64(z.CenterRow), Zone: i}
	}
	idx.tree = kdtree.New(centers, false)
	return idx
}

// Nearest returns the zone whose centre is closest to p and the Euclidean
// distance in cells. ok is false when the index holds no zones.
func (zi *ZoneIndex) Nearest(p models.Point) (zone models.LandingZone, dist float64, ok bool) {
	if zi.tree == nil {
		return models.LandingZone{}, 0, false
	}
	got, d2 := zi.tree.Nearest(zoneCenter{X: float64(p.X), Y: float64(p.Y), Zone: -1})
	if got == nil {
		return models.LandingZone{}, 0, false
	}
	return zi.zones[got.(zoneCenter).Zone], math.Sqrt(d2), true
}
