package domain

import "errors"

// Pipeline error taxonomy. Only ErrInvalidRegion (rejected before any
// download) and ErrNoTemporalOverlap surface to callers as hard failures;
// the rest degrade the result and are reported through quality metadata.
var (
	// ErrInvalidRegion marks request bounds that are malformed, outside
	// the valid lat/lon range, degenerate, or larger than 20°x20°.
	ErrInvalidRegion = errors.New("invalid region bounds")

	// ErrSourceUnavailable marks a single source whose download failed.
	// The request proceeds with the remaining sources.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoTemporalOverlap means no common time window exists across the
	// time-varying sources. Fatal for the request.
	ErrNoTemporalOverlap = errors.New("insufficient temporal overlap between sources")

	// ErrResample marks a single source's reprojection failure. The source
	// is dropped from the result.
	ErrResample = errors.New("resampling failed")

	// ErrCacheCorrupt marks a cache entry that failed to deserialize.
	// Treated as a miss; the entry is recomputed and overwritten.
	ErrCacheCorrupt = errors.New("cache entry corrupt")
)
