// Package raster provides the spatial regridding primitives used by the
// harmonization pipeline. All kernels are pure functions between two grid
// specs, NaN-aware, and never mutate their input arrays.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/geohealth/envfuse/internal/domain"
)

// Resample regrids a 2-D array from srcGrid onto dstGrid with the given
// method. The input must match srcGrid's dimensions.
func Resample(src *sparse.DenseArray, srcGrid, dstGrid domain.GridSpec, method domain.ResampleMethod) (*sparse.DenseArray, error) {
	if len(src.Shape) != 2 || src.Shape[0] != srcGrid.Height || src.Shape[1] != srcGrid.Width {
		return nil, fmt.Errorf("%w: shape %v does not match source grid %dx%d",
			domain.ErrResample, src.Shape, srcGrid.Height, srcGrid.Width)
	}
	switch method {
	case domain.ResampleBilinear:
		return bilinear(src, srcGrid, dstGrid), nil
	case domain.ResampleNearest:
		return nearest(src, srcGrid, dstGrid), nil
	case domain.ResampleSum:
		return sumAggregate(src, srcGrid, dstGrid), nil
	default:
		return nil, fmt.Errorf("%w: unknown method %d", domain.ErrResample, method)
	}
}

// ResampleBlock regrids every time slice of a block onto dstGrid.
func ResampleBlock(b *domain.RasterBlock, dstGrid domain.GridSpec, method domain.ResampleMethod) (*domain.RasterBlock, error) {
	if !b.IsSeries() {
		out, err := Resample(b.Data, b.Grid, dstGrid, method)
		if err != nil {
			return nil, err
		}
		return domain.NewStaticBlock(b.Name, dstGrid, out)
	}

	steps := len(b.Times)
	out := sparse.ZerosDense(steps, dstGrid.Height, dstGrid.Width)
	plane := dstGrid.Height * dstGrid.Width
	for t := 0; t < steps; t++ {
		slice, err := Resample(b.SliceAt(t), b.Grid, dstGrid, method)
		if err != nil {
			return nil, fmt.Errorf("time step %d: %w", t, err)
		}
		copy(out.Elements[t*plane:(t+1)*plane], slice.Elements)
	}
	return domain.NewSeriesBlock(b.Name, dstGrid, b.Times, out)
}

// bilinear samples each destination cell center from the four surrounding
// source cell centers. NaN neighbors are dropped and the remaining weights
// renormalized; a cell with no valid neighbor stays NaN. Cells outside the
// source extent are NaN.
func bilinear(src *sparse.DenseArray, srcGrid, dstGrid domain.GridSpec) *sparse.DenseArray {
	out := sparse.ZerosDense(dstGrid.Height, dstGrid.Width)
	for row := 0; row < dstGrid.Height; row++ {
		for col := 0; col < dstGrid.Width; col++ {
			x, y := dstGrid.X(col), dstGrid.Y(row)
			out.Set(bilinearSample(src, srcGrid, x, y), row, col)
		}
	}
	return out
}

func bilinearSample(src *sparse.DenseArray, g domain.GridSpec, x, y float64) float64 {
	if !g.Bounds.Contains(x, y) {
		return math.NaN()
	}
	// Fractional position in cell-center coordinates.
	fc := (x-g.Bounds.West)/g.CellDeg - 0.5
	fr := (g.Bounds.North-y)/g.CellDeg - 0.5

	c0 := clampIndex(int(math.Floor(fc)), g.Width-1)
	r0 := clampIndex(int(math.Floor(fr)), g.Height-1)
	c1 := clampIndex(c0+1, g.Width-1)
	r1 := clampIndex(r0+1, g.Height-1)

	wc := fc - float64(c0)
	wr := fr - float64(r0)
	if wc < 0 {
		wc = 0
	}
	if wr < 0 {
		wr = 0
	}

	var sum, wsum float64
	corners := [4]struct {
		r, c int
		w    float64
	}{
		{r0, c0, (1 - wr) * (1 - wc)},
		{r0, c1, (1 - wr) * wc},
		{r1, c0, wr * (1 - wc)},
		{r1, c1, wr * wc},
	}
	for _, k := range corners {
		v := src.Get(k.r, k.c)
		if math.IsNaN(v) || k.w == 0 {
			continue
		}
		sum += v * k.w
		wsum += k.w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

// nearest assigns each destination cell the value of the source cell
// containing its center. Used for categorical surfaces so regridding never
// invents intermediate categories.
func nearest(src *sparse.DenseArray, srcGrid, dstGrid domain.GridSpec) *sparse.DenseArray {
	out := sparse.ZerosDense(dstGrid.Height, dstGrid.Width)
	for row := 0; row < dstGrid.Height; row++ {
		for col := 0; col < dstGrid.Width; col++ {
			sr, sc, ok := srcGrid.RowCol(dstGrid.X(col), dstGrid.Y(row))
			if !ok {
				out.Set(math.NaN(), row, col)
				continue
			}
			out.Set(src.Get(sr, sc), row, col)
		}
	}
	return out
}

// sumAggregate assigns each finite source cell's value to the destination
// cell containing the source cell's center. Totals are conserved exactly as
// long as the destination grid covers the source extent. Destination cells
// that receive no source cell stay NaN.
func sumAggregate(src *sparse.DenseArray, srcGrid, dstGrid domain.GridSpec) *sparse.DenseArray {
	out := sparse.ZerosDense(dstGrid.Height, dstGrid.Width)
	for i := range out.Elements {
		out.Elements[i] = math.NaN()
	}
	for row := 0; row < srcGrid.Height; row++ {
		for col := 0; col < srcGrid.Width; col++ {
			v := src.Get(row, col)
			if math.IsNaN(v) {
				continue
			}
			dr, dc, ok := dstGrid.RowCol(srcGrid.X(col), srcGrid.Y(row))
			if !ok {
				continue
			}
			cur := out.Get(dr, dc)
			if math.IsNaN(cur) {
				cur = 0
			}
			out.Set(cur+v, dr, dc)
		}
	}
	return out
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
