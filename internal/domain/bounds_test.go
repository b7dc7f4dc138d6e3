package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsValidate(t *testing.T) {
	tests := []struct {
		name    string
		bounds  Bounds
		wantErr bool
	}{
		{name: "valid", bounds: Bounds{West: 33.5, South: -4.9, East: 42.0, North: 5.9}},
		{name: "valid small", bounds: Bounds{West: 0, South: 0, East: 0.01, North: 0.01}},
		{name: "nan coordinate", bounds: Bounds{West: math.NaN(), South: 0, East: 1, North: 1}, wantErr: true},
		{name: "infinite coordinate", bounds: Bounds{West: 0, South: 0, East: math.Inf(1), North: 1}, wantErr: true},
		{name: "west beyond range", bounds: Bounds{West: -181, South: 0, East: 1, North: 1}, wantErr: true},
		{name: "north beyond range", bounds: Bounds{West: 0, South: 0, East: 1, North: 91}, wantErr: true},
		{name: "west equals east", bounds: Bounds{West: 5, South: 0, East: 5, North: 1}, wantErr: true},
		{name: "inverted latitudes", bounds: Bounds{West: 0, South: 5, East: 1, North: 2}, wantErr: true},
		{name: "too wide", bounds: Bounds{West: 0, South: 0, East: 20.5, North: 1}, wantErr: true},
		{name: "too tall", bounds: Bounds{West: 0, South: -15, East: 1, North: 10}, wantErr: true},
		{name: "at span limit", bounds: Bounds{West: 0, South: 0, East: 20, North: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRegion)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBoundsUnion(t *testing.T) {
	a := Bounds{West: 0, South: 0, East: 2, North: 2}
	b := Bounds{West: 1, South: -1, East: 3, North: 1}

	got := a.Union(b)

	assert.Equal(t, Bounds{West: 0, South: -1, East: 3, North: 2}, got)
	assert.Equal(t, got, b.Union(a))
}

func TestBoundsRound(t *testing.T) {
	b := Bounds{West: 33.50049, South: -4.90051, East: 42.00009, North: 5.89999}

	got := b.Round(3)

	assert.Equal(t, Bounds{West: 33.5, South: -4.901, East: 42.0, North: 5.9}, got)
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{West: 10, South: -5, East: 20, North: 5}

	assert.True(t, b.Contains(15, 0))
	assert.True(t, b.Contains(10, -5), "edges are inclusive")
	assert.False(t, b.Contains(9.999, 0))
	assert.False(t, b.Contains(15, 5.001))
}
