// Package cache persists completed harmonization results keyed by
// (region, date range, resolution), with freshness-based invalidation at
// read time. There is no background sweeper; stale and corrupt entries are
// discovered and discarded when read.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/geohealth/envfuse/internal/domain"
)

// Key identifies one cacheable harmonization request. Bounds are rounded to
// three decimals (~110 m) so nearly identical regions share an entry.
type Key struct {
	Bounds     domain.Bounds
	Start      time.Time
	End        time.Time
	Resolution domain.Resolution
}

// NewKey builds a cache key with rounded bounds and day-granular dates.
func NewKey(bounds domain.Bounds, start, end time.Time, res domain.Resolution) Key {
	return Key{
		Bounds:     bounds.Round(3),
		Start:      start.UTC().Truncate(24 * time.Hour),
		End:        end.UTC().Truncate(24 * time.Hour),
		Resolution: res,
	}
}

// String returns the canonical key text used for hashing and logging.
func (k Key) String() string {
	return fmt.Sprintf("%.3f_%.3f_%.3f_%.3f_%s_%s_%s",
		k.Bounds.West, k.Bounds.South, k.Bounds.East, k.Bounds.North,
		k.Start.Format(time.DateOnly), k.End.Format(time.DateOnly), k.Resolution)
}

// filename hashes the key into a fixed-length cache file name.
func (k Key) filename() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:16]) + ".gob"
}
