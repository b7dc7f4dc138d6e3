package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geohealth/envfuse/internal/domain"
)

func TestNewKeyNormalizesBoundsAndDates(t *testing.T) {
	a := NewKey(
		domain.Bounds{West: -4.9001, South: 33.5002, East: 5.8999, North: 42.0001},
		time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		time.Date(2026, 7, 30, 23, 59, 59, 0, time.UTC),
		domain.Resolution1km,
	)
	b := NewKey(
		domain.Bounds{West: -4.8999, South: 33.4998, East: 5.9001, North: 41.9999},
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 30, 4, 15, 0, 0, time.UTC),
		domain.Resolution1km,
	)

	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.filename(), b.filename())
}

func TestKeyStringIsCanonical(t *testing.T) {
	k := NewKey(
		domain.Bounds{West: -4.9, South: 33.5, East: 5.9, North: 42.0},
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC),
		domain.Resolution10km,
	)
	assert.Equal(t, "-4.900_33.500_5.900_42.000_2026-05-01_2026-07-30_10km", k.String())
}

func TestKeyFilenameDiscriminates(t *testing.T) {
	base := NewKey(
		domain.Bounds{West: 0, South: 0, East: 5, North: 5},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		domain.Resolution1km,
	)

	shifted := base
	shifted.Bounds.East = 5.001
	coarser := base
	coarser.Resolution = domain.Resolution10km
	longer := base
	longer.End = base.End.AddDate(0, 0, 1)

	names := map[string]bool{
		base.filename():    true,
		shifted.filename(): true,
		coarser.filename(): true,
		longer.filename():  true,
	}
	assert.Len(t, names, 4)
	for name := range names {
		// 16 hash bytes hex-encoded plus the extension.
		assert.Len(t, name, 36)
		assert.Regexp(t, `^[0-9a-f]{32}\.gob$`, name)
	}
}
