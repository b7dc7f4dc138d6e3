// Package source defines the collaborator boundary to the five external
// data providers and ships two local adapters: a NetCDF file reader and a
// deterministic synthetic generator.
//
// Clients return (dataset, error); the orchestrator isolates each source's
// error as a degradation rather than aborting the request, so a failing
// client never takes the pipeline down with it.
package source

import (
	"context"
	"time"

	"github.com/geohealth/envfuse/internal/domain"
)

// Client downloads one source's contribution for a region and date range.
type Client interface {
	// Kind identifies which source this client serves.
	Kind() domain.SourceKind
	// Download returns the source's raster blocks covering the request.
	// The returned grid may be the source's native grid; spatial
	// harmonization happens downstream.
	Download(ctx context.Context, start, end time.Time, bounds domain.Bounds) (*domain.SourceDataset, error)
}
