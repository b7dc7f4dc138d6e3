// Package domain models the data harmonization pipeline's core types.
//
// # Sources
//
// Five independent geospatial sources feed the pipeline, each with its own
// native resolution, sampling cadence, and missing-data semantics:
//
//	climate        daily reanalysis surfaces (temperature, humidity), ~31 km native
//	precipitation  daily rainfall accumulations, ~5 km native
//	vegetation     16-day NDVI composites, 250 m native
//	risk_surface   annual malaria risk surfaces (percent), ~5 km native
//	population     annual population-density rasters, 100 m native
//
// Harmonization aligns all of them onto one time index and one spatial grid
// before feature extraction. Per-source behavior (gap filling, resampling
// kernel, physical validity range) is resolved once through the [Strategy]
// table rather than dispatched on source names at each step.
//
// # Missing data
//
// Absence is a typed state, never a caught error. Missing pixels are NaN in
// the backing arrays; features whose inputs are unavailable are absent map
// keys in [HarmonizedResult.Features]. Callers check for key presence and
// must not assume the full feature set is present.
//
// # Ownership
//
// A [RasterBlock] is owned by the pipeline stage that created it. Stages
// transform by copying, never by mutating a block they received, so a
// harmonized result can be cached and shared without locking.
package domain
