package geo

import "math"

// ScanPoint is one unit of work against the places directory: a search
// center, a search radius and the query terms to issue there.
type ScanPoint struct {
	Lat        float64
	Lng        float64
	RadiusM    float64
	RegionID   string
	QueryTerms []string
}

// boundaryEfficiency is the fraction of a bounding-grid's cells that a
// square lattice laid over a disk actually keeps. Used to floor cost
// estimates before a scan is dispatched.
const boundaryEfficiency = 0.7

// Planner turns one region into an ordered set of scan points whose disks
// jointly cover the region's search disk.
type Planner struct {
	// GridSizeByPriority maps a region priority to a scan cell diameter in
	// meters. Missing priorities fall back to DefaultGridSizeM.
	GridSizeByPriority map[int]float64
	DefaultGridSizeM   float64
}

// NewPlanner returns a planner with the default priority/grid-size table:
// dense priority-1 regions get small cells, sparse ones large cells.
func NewPlanner() *Planner {
	return &Planner{
		GridSizeByPriority: map[int]float64{
			1: 1500,
			2: 2500,
			3: 4000,
		},
		DefaultGridSizeM: 4000,
	}
}

// GridSizeFor returns the scan cell diameter for a region priority.
func (p *Planner) GridSizeFor(priority int) float64 {
	if g, ok := p.GridSizeByPriority[priority]; ok {
		return g
	}
	return p.DefaultGridSizeM
}

// Plan lays a square lattice of scan points over the region's search disk.
//
// The lattice spacing is gridSize * (1 - overlap) so adjacent cells overlap
// and leave no gaps between their disks: with overlap >= 1 - 1/sqrt(2)
// (~0.29) a square lattice of radius gridSize/2 disks covers the plane.
// Points are emitted row-major, south to north then west to east, so the
// sequence is deterministic and a cancelled session can resume at a known
// offset. A region smaller than one cell yields exactly one point at its
// center.
func (p *Planner) Plan(region Region, overlap float64, queryTerms []string) []ScanPoint {
	grid := p.GridSizeFor(region.Priority)
	if overlap < 0 {
		overlap = 0
	}
	if overlap > 0.5 {
		overlap = 0.5
	}
	cellRadius := grid / 2

	if region.RadiusM <= cellRadius {
		return []ScanPoint{{
			Lat:        region.Lat,
			Lng:        region.Lng,
			RadiusM:    cellRadius,
			RegionID:   region.ID,
			QueryTerms: queryTerms,
		}}
	}

	spacing := grid * (1 - overlap)
	n := int(math.Floor(region.RadiusM / spacing))
	var points []ScanPoint
	for row := -n; row <= n; row++ {
		dy := float64(row) * spacing
		for col := -n; col <= n; col++ {
			dx := float64(col) * spacing
			if dx*dx+dy*dy > region.RadiusM*region.RadiusM {
				continue
			}
			lat, lng := offsetCoord(region.Lat, region.Lng, dx, dy)
			points = append(points, ScanPoint{
				Lat:        lat,
				Lng:        lng,
				RadiusM:    cellRadius,
				RegionID:   region.ID,
				QueryTerms: queryTerms,
			})
		}
	}
	return points
}

// EstimateCells approximates how many scan cells Plan will emit for a disk
// of the given radius: the bounding lattice count derated by
// boundaryEfficiency. It intentionally floors the real count, so budget
// checks built on it are conservative.
func EstimateCells(radiusM, gridSizeM, overlap float64) int {
	if overlap < 0 {
		overlap = 0
	}
	if overlap > 0.5 {
		overlap = 0.5
	}
	if radiusM <= gridSizeM/2 {
		return 1
	}
	spacing := gridSizeM * (1 - overlap)
	if spacing <= 0 {
		return 0
	}
	perAxis := 2*math.Floor(radiusM/spacing) + 1
	return int(math.Ceil(perAxis * perAxis * boundaryEfficiency))
}
