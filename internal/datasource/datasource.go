// Package datasource defines the data-access contract of the dashboard and
// the result shaping shared by its implementations.
//
// Implementations never return query errors to callers. A failed query is
// logged inside the implementation and degrades to a nil or empty result.
// The only error a method may return is ErrNotInitialized, which means the
// data source was used without being configured and is fatal.
package datasource

import (
	"context"
	"errors"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// ErrNotInitialized is returned when a data source is used before its
// backend connection was configured.
var ErrNotInitialized = errors.New("data source not initialized")

// ParcelDataSource is the read contract the dashboard depends on.
type ParcelDataSource interface {
	// Name identifies the backend in logs and the info endpoint.
	Name() string

	// GetParcelInfo returns the parcel or nil when it is unknown.
	GetParcelInfo(ctx context.Context, parcelID string) (*models.Parcel, error)

	// GetLatestIndexResults returns at most one measurement per index type,
	// the most recent one.
	GetLatestIndexResults(ctx context.Context, parcelID string) ([]models.Measurement, error)

	// GetTimeSeriesData returns the measurements of one index acquired in
	// the last daysBack days, strictly ascending by date.
	GetTimeSeriesData(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error)

	// GetAllIndexResults returns measurements of every index, newest first,
	// truncated to limit entries.
	GetAllIndexResults(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error)

	// GetZoneClassifications returns the zone percentages. Only NDRE has
	// zones; other index types yield an empty result.
	GetZoneClassifications(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error)

	// GetZoneGeometries returns the zone polygons known to the backend.
	GetZoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneGeometry, error)

	// HealthCheck reports whether the backend answers.
	HealthCheck(ctx context.Context) bool
}

// RefreshResult is the outcome of regenerating one raster layer.
type RefreshResult struct {
	Layer models.RasterLayer
	Err   error
}

// RasterRefresher is implemented by backends that can regenerate the
// displayed rasters on demand.
type RasterRefresher interface {
	// RefreshAllRasterLayers triggers every layer concurrently and waits
	// for all of them. A failing layer never cancels the others.
	RefreshAllRasterLayers(ctx context.Context, parcelID string) ([]RefreshResult, error)
}

// PointSampler is implemented by backends that can read a raster value at
// a map coordinate. A nil value means there is no data at that point.
type PointSampler interface {
	SampleValue(ctx context.Context, indexType models.IndexType, lat, lng float64) (*float64, error)
}

// MetadataSource is implemented by backends with a key/value metadata table.
type MetadataSource interface {
	// GetMetadata returns the value for key and whether it exists.
	GetMetadata(ctx context.Context, key string) (string, bool, error)
}
