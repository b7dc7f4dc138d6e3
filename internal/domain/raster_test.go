package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctessum/sparse"
)

func testGrid(w, h int) GridSpec {
	return GridSpec{
		Bounds:  Bounds{West: 0, South: 0, East: float64(w), North: float64(h)},
		Width:   w,
		Height:  h,
		CellDeg: 1.0,
	}
}

func TestNewStaticBlockRejectsShapeMismatch(t *testing.T) {
	grid := testGrid(3, 2)

	_, err := NewStaticBlock(VarRisk, grid, sparse.ZerosDense(2, 2))
	assert.Error(t, err)

	_, err = NewStaticBlock(VarRisk, grid, sparse.ZerosDense(5, 2, 3))
	assert.Error(t, err, "static blocks must be 2-D")

	block, err := NewStaticBlock(VarRisk, grid, sparse.ZerosDense(2, 3))
	require.NoError(t, err)
	assert.False(t, block.IsSeries())
	assert.Equal(t, 1, block.Steps())
}

func TestNewSeriesBlockRejectsMismatchedTimeAxis(t *testing.T) {
	grid := testGrid(3, 2)
	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	_, err := NewSeriesBlock(VarNDVI, grid, times, sparse.ZerosDense(3, 2, 3))
	assert.Error(t, err, "time axis length must match the leading dimension")

	block, err := NewSeriesBlock(VarNDVI, grid, times, sparse.ZerosDense(2, 2, 3))
	require.NoError(t, err)
	assert.True(t, block.IsSeries())
	assert.Equal(t, 2, block.Steps())
}

func TestSliceAtCopies(t *testing.T) {
	grid := testGrid(2, 2)
	data := sparse.ZerosDense(2, 2, 2)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	block, err := NewSeriesBlock(VarPrecipitation, grid, times, data)
	require.NoError(t, err)

	slice := block.SliceAt(1)
	assert.Equal(t, []float64{4, 5, 6, 7}, slice.Elements)

	slice.Elements[0] = -1
	assert.Equal(t, 4.0, block.Data.Elements[4], "mutating the slice must not touch the block")
}

func TestCloneIsDeep(t *testing.T) {
	grid := testGrid(2, 1)
	data := sparse.ZerosDense(1, 2)
	data.Elements[0] = 7
	block, err := NewStaticBlock(VarPopulation, grid, data)
	require.NoError(t, err)

	clone := block.Clone()
	clone.Data.Elements[0] = 99

	assert.Equal(t, 7.0, block.Data.Elements[0])
	assert.Equal(t, 99.0, clone.Data.Elements[0])
}

func TestValidRatio(t *testing.T) {
	grid := testGrid(2, 2)
	data := sparse.ZerosDense(2, 2)
	data.Elements[0] = math.NaN()
	block, err := NewStaticBlock(VarNDVI, grid, data)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, block.ValidRatio(), 1e-12)
}
