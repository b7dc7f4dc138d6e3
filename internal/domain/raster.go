package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// RasterBlock is the common working unit of the pipeline: a named numeric
// array with georeferencing. Data is either 2-D (Height x Width, static) or
// 3-D time-major (len(Times) x Height x Width). Missing pixels are NaN.
//
// Blocks follow copy-on-transform discipline: a stage that received a block
// builds a new one rather than mutating it in place.
type RasterBlock struct {
	Name string
	Data *sparse.DenseArray
	Grid GridSpec
	// Times is the time axis for 3-D data; nil for static 2-D blocks.
	Times []time.Time
}

// NewStaticBlock creates a 2-D block over the given grid.
func NewStaticBlock(name string, grid GridSpec, data *sparse.DenseArray) (*RasterBlock, error) {
	if len(data.Shape) != 2 || data.Shape[0] != grid.Height || data.Shape[1] != grid.Width {
		return nil, fmt.Errorf("block %q: data shape %v does not match grid %dx%d",
			name, data.Shape, grid.Height, grid.Width)
	}
	return &RasterBlock{Name: name, Data: data, Grid: grid}, nil
}

// NewSeriesBlock creates a 3-D time-major block over the given grid.
func NewSeriesBlock(name string, grid GridSpec, times []time.Time, data *sparse.DenseArray) (*RasterBlock, error) {
	if len(data.Shape) != 3 || data.Shape[0] != len(times) ||
		data.Shape[1] != grid.Height || data.Shape[2] != grid.Width {
		return nil, fmt.Errorf("block %q: data shape %v does not match %d times on grid %dx%d",
			name, data.Shape, len(times), grid.Height, grid.Width)
	}
	return &RasterBlock{Name: name, Data: data, Grid: grid, Times: times}, nil
}

// IsSeries reports whether the block carries a time axis.
func (b *RasterBlock) IsSeries() bool { return len(b.Times) > 0 }

// Steps returns the number of time steps (1 for static blocks).
func (b *RasterBlock) Steps() int {
	if !b.IsSeries() {
		return 1
	}
	return len(b.Times)
}

// SliceAt returns a copy of the 2-D spatial slice at time step t.
// For static blocks any t returns the full array.
func (b *RasterBlock) SliceAt(t int) *sparse.DenseArray {
	h, w := b.Grid.Height, b.Grid.Width
	out := sparse.ZerosDense(h, w)
	if !b.IsSeries() {
		copy(out.Elements, b.Data.Elements)
		return out
	}
	copy(out.Elements, b.Data.Elements[t*h*w:(t+1)*h*w])
	return out
}

// Clone returns a deep copy of the block.
func (b *RasterBlock) Clone() *RasterBlock {
	data := sparse.ZerosDense(b.Data.Shape...)
	copy(data.Elements, b.Data.Elements)
	var times []time.Time
	if b.Times != nil {
		times = make([]time.Time, len(b.Times))
		copy(times, b.Times)
	}
	return &RasterBlock{Name: b.Name, Data: data, Grid: b.Grid, Times: times}
}

// ValidRatio returns the fraction of finite pixels in the block.
func (b *RasterBlock) ValidRatio() float64 {
	if len(b.Data.Elements) == 0 {
		return 0
	}
	valid := 0
	for _, v := range b.Data.Elements {
		if !math.IsNaN(v) {
			valid++
		}
	}
	return float64(valid) / float64(len(b.Data.Elements))
}
