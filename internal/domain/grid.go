package domain

import (
	"fmt"
	"math"
)

// kmPerDegree is the equatorial approximation used to convert resolution
// labels into grid cell sizes.
const kmPerDegree = 111.0

// Resolution is a target grid resolution label.
type Resolution string

const (
	Resolution1km  Resolution = "1km"
	Resolution5km  Resolution = "5km"
	Resolution10km Resolution = "10km"
)

// CellDegrees converts the resolution label to a cell size in degrees.
func (r Resolution) CellDegrees() (float64, error) {
	switch r {
	case Resolution1km:
		return 1.0 / kmPerDegree, nil
	case Resolution5km:
		return 5.0 / kmPerDegree, nil
	case Resolution10km:
		return 10.0 / kmPerDegree, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q (want 1km, 5km, or 10km)", r)
	}
}

// GridSpec describes a regular lat/lon grid: bounds, dimensions, and cell
// size. Row 0 is the northernmost row, column 0 the westernmost column, and
// cell coordinates refer to cell centers.
type GridSpec struct {
	Bounds  Bounds
	Width   int
	Height  int
	CellDeg float64
}

// NewTargetGrid computes the shared request grid from region bounds and a
// resolution label. Done once per request; every source is regridded onto it.
func NewTargetGrid(b Bounds, res Resolution) (GridSpec, error) {
	cell, err := res.CellDegrees()
	if err != nil {
		return GridSpec{}, err
	}
	w := int(math.Ceil(b.Width() / cell))
	h := int(math.Ceil(b.Height() / cell))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return GridSpec{Bounds: b, Width: w, Height: h, CellDeg: cell}, nil
}

// X returns the longitude of the center of column col.
func (g GridSpec) X(col int) float64 {
	return g.Bounds.West + (float64(col)+0.5)*g.CellDeg
}

// Y returns the latitude of the center of row row.
func (g GridSpec) Y(row int) float64 {
	return g.Bounds.North - (float64(row)+0.5)*g.CellDeg
}

// RowCol returns the grid cell containing the point (x east, y north).
// The second return is false when the point falls outside the grid.
func (g GridSpec) RowCol(x, y float64) (row, col int, ok bool) {
	col = int(math.Floor((x - g.Bounds.West) / g.CellDeg))
	row = int(math.Floor((g.Bounds.North - y) / g.CellDeg))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, 0, false
	}
	return row, col, true
}

// SameShape reports whether two grids have identical dimensions.
func (g GridSpec) SameShape(o GridSpec) bool {
	return g.Width == o.Width && g.Height == o.Height
}

func (g GridSpec) String() string {
	return fmt.Sprintf("%dx%d@%.5f° %s", g.Height, g.Width, g.CellDeg, g.Bounds)
}
