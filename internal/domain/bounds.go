package domain

import (
	"fmt"
	"math"
)

// maxRegionSpanDeg caps request regions at 20°x20° so a single request
// cannot allocate an unbounded grid.
const maxRegionSpanDeg = 20.0

// Bounds is a geographic bounding box in WGS-84 degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Validate rejects malformed, out-of-range, degenerate, or oversized bounds.
// All failures wrap ErrInvalidRegion.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.West, b.South, b.East, b.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidRegion)
		}
	}
	if b.West < -180 || b.East > 180 || b.South < -90 || b.North > 90 {
		return fmt.Errorf("%w: (%g,%g,%g,%g) outside [-180,180]x[-90,90]",
			ErrInvalidRegion, b.West, b.South, b.East, b.North)
	}
	if b.West >= b.East || b.South >= b.North {
		return fmt.Errorf("%w: degenerate box (west=%g east=%g south=%g north=%g)",
			ErrInvalidRegion, b.West, b.East, b.South, b.North)
	}
	if b.Width() > maxRegionSpanDeg || b.Height() > maxRegionSpanDeg {
		return fmt.Errorf("%w: %.2f°x%.2f° exceeds %g°x%g° limit",
			ErrInvalidRegion, b.Width(), b.Height(), maxRegionSpanDeg, maxRegionSpanDeg)
	}
	return nil
}

// Width returns the east-west span in degrees.
func (b Bounds) Width() float64 { return b.East - b.West }

// Height returns the north-south span in degrees.
func (b Bounds) Height() float64 { return b.North - b.South }

// Union returns the smallest box covering both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		West:  math.Min(b.West, o.West),
		South: math.Min(b.South, o.South),
		East:  math.Max(b.East, o.East),
		North: math.Max(b.North, o.North),
	}
}

// Round returns b with each edge rounded to the given number of decimals.
// Cache keys round to 3 decimals (~110 m) so nearly identical requests share
// an entry.
func (b Bounds) Round(decimals int) Bounds {
	f := math.Pow(10, float64(decimals))
	r := func(v float64) float64 { return math.Round(v*f) / f }
	return Bounds{West: r(b.West), South: r(b.South), East: r(b.East), North: r(b.North)}
}

// Contains reports whether the point (x east, y north) lies inside b.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.West && x <= b.East && y >= b.South && y <= b.North
}

func (b Bounds) String() string {
	return fmt.Sprintf("(%.3f,%.3f,%.3f,%.3f)", b.West, b.South, b.East, b.North)
}
