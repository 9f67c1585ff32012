// Package store implements the dashboard data source on top of the
// PostgreSQL tables filled by the index processing pipeline.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stwalsh4118/fieldwatch/internal/database"
	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/geometry"
	"github.com/stwalsh4118/fieldwatch/internal/logger"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Name is the backend identifier reported by the store.
const Name = "store"

// querier is the subset of pgxpool.Pool the store needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads parcels, index results and zones from PostgreSQL.
type Store struct {
	db  querier
	log *logger.Logger
	now func() time.Time
}

var (
	_ datasource.ParcelDataSource = (*Store)(nil)
	_ datasource.MetadataSource   = (*Store)(nil)
)

// New creates a Store over an open database. A nil database yields a Store
// whose every query fails with datasource.ErrNotInitialized.
func New(db *database.Database, log *logger.Logger) *Store {
	s := &Store{log: log.WithComponent(Name), now: time.Now}
	if db != nil && db.Pool != nil {
		s.db = db.Pool
	}
	return s
}

// Name implements datasource.ParcelDataSource.
func (s *Store) Name() string { return Name }

func (s *Store) ready() error {
	if s.db == nil {
		return datasource.ErrNotInitialized
	}
	return nil
}

const measurementColumns = `
	parcel_id,
	index_type,
	acquisition_date,
	mean_value::float8,
	min_value::float8,
	max_value::float8,
	percentile_50::float8,
	percentile_10::float8,
	percentile_90::float8,
	std_dev::float8,
	COALESCE(valid_pixels, 0)::int,
	COALESCE(cloud_pixels, 0)::int`

// GetParcelInfo implements datasource.ParcelDataSource.
func (s *Store) GetParcelInfo(ctx context.Context, parcelID string) (*models.Parcel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT
			parcel_id,
			COALESCE(municipality, ''),
			area_ha::float8,
			geometry::text
		FROM parcels
		WHERE parcel_id = $1
		LIMIT 1
	`

	var parcel models.Parcel
	var geomJSON *string

	err := s.db.QueryRow(ctx, query, parcelID).Scan(
		&parcel.ParcelID,
		&parcel.Municipality,
		&parcel.AreaHa,
		&geomJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		s.log.Error("Failed to load parcel", err, map[string]interface{}{"parcel_id": parcelID})
		return nil, nil
	}

	if geomJSON != nil {
		var geom models.Geometry
		if err := geom.Scan(*geomJSON); err != nil {
			s.log.Warn("Parcel geometry is not valid GeoJSON", map[string]interface{}{
				"parcel_id": parcelID,
				"error":     err.Error(),
			})
		} else if geom.HasCoordinates() {
			parcel.Geometry = &geom
		}
	}

	return &parcel, nil
}

// GetLatestIndexResults implements datasource.ParcelDataSource.
func (s *Store) GetLatestIndexResults(ctx context.Context, parcelID string) ([]models.Measurement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `SELECT ` + measurementColumns + `
		FROM latest_index_results
		WHERE parcel_id = $1
	`

	results, err := s.queryMeasurements(ctx, query, parcelID)
	if err != nil {
		s.log.Error("Failed to load latest index results", err, map[string]interface{}{"parcel_id": parcelID})
		return []models.Measurement{}, nil
	}
	return datasource.LatestPerIndex(results), nil
}

// GetTimeSeriesData implements datasource.ParcelDataSource.
func (s *Store) GetTimeSeriesData(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := datasource.Cutoff(now, daysBack)

	query := `SELECT ` + measurementColumns + `
		FROM index_results
		WHERE parcel_id = $1
			AND index_type = $2
			AND acquisition_date >= $3
		ORDER BY acquisition_date ASC
	`

	results, err := s.queryMeasurements(ctx, query, parcelID, string(indexType), cutoff.Time)
	if err != nil {
		s.log.Error("Failed to load time series", err, map[string]interface{}{
			"parcel_id":  parcelID,
			"index_type": indexType,
			"days_back":  daysBack,
		})
		return []models.Measurement{}, nil
	}
	return datasource.TimeSeries(results, now, daysBack), nil
}

// GetAllIndexResults implements datasource.ParcelDataSource.
func (s *Store) GetAllIndexResults(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `SELECT ` + measurementColumns + `
		FROM index_results
		WHERE parcel_id = $1
		ORDER BY acquisition_date DESC
		LIMIT $2
	`

	results, err := s.queryMeasurements(ctx, query, parcelID, limit)
	if err != nil {
		s.log.Error("Failed to load index results", err, map[string]interface{}{
			"parcel_id": parcelID,
			"limit":     limit,
		})
		return []models.Measurement{}, nil
	}
	return results, nil
}

// GetZoneClassifications implements datasource.ParcelDataSource.
// Only the classification set of the most recent acquisition is returned.
func (s *Store) GetZoneClassifications(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if indexType != models.IndexNDRE {
		return []models.ZoneClassification{}, nil
	}

	query := `
		SELECT
			zone_type,
			COALESCE(percentage, 0)::float8,
			COALESCE(recommendation, '')
		FROM zone_classifications
		WHERE parcel_id = $1
			AND index_type = $2
			AND acquisition_date = (
				SELECT max(acquisition_date)
				FROM zone_classifications
				WHERE parcel_id = $1 AND index_type = $2
			)
	`

	rows, err := s.db.Query(ctx, query, parcelID, string(indexType))
	if err != nil {
		s.log.Error("Failed to load zone classifications", err, map[string]interface{}{"parcel_id": parcelID})
		return []models.ZoneClassification{}, nil
	}
	defer rows.Close()

	byZone := make(map[models.ZoneType]models.ZoneClassification, len(models.AllZoneTypes))
	for rows.Next() {
		var zoneType string
		var zc models.ZoneClassification
		if err := rows.Scan(&zoneType, &zc.Percentage, &zc.Recommendation); err != nil {
			s.log.Error("Failed to scan zone classification", err, map[string]interface{}{"parcel_id": parcelID})
			return []models.ZoneClassification{}, nil
		}
		zt, err := models.ParseZoneType(zoneType)
		if err != nil {
			continue
		}
		if _, seen := byZone[zt]; seen {
			continue
		}
		zc.ZoneType = zt
		if zc.Recommendation == "" {
			zc.Recommendation = models.ZoneAdvice(zt)
		}
		byZone[zt] = zc
	}
	if err := rows.Err(); err != nil {
		s.log.Error("Error iterating zone classifications", err, map[string]interface{}{"parcel_id": parcelID})
		return []models.ZoneClassification{}, nil
	}

	out := make([]models.ZoneClassification, 0, len(byZone))
	for _, zt := range models.AllZoneTypes {
		if zc, ok := byZone[zt]; ok {
			out = append(out, zc)
		}
	}
	return out, nil
}

// GetZoneGeometries implements datasource.ParcelDataSource.
// Only the geometry set of the most recent acquisition is returned, one
// entry per zone type.
func (s *Store) GetZoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneGeometry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if indexType != models.IndexNDRE {
		return []models.ZoneGeometry{}, nil
	}

	query := `
		SELECT
			zone_type,
			geometry::text
		FROM zone_geometries
		WHERE parcel_id = $1
			AND index_type = $2
			AND acquisition_date = (
				SELECT max(acquisition_date)
				FROM zone_geometries
				WHERE parcel_id = $1 AND index_type = $2
			)
	`

	rows, err := s.db.Query(ctx, query, parcelID, string(indexType))
	if err != nil {
		s.log.Error("Failed to load zone geometries", err, map[string]interface{}{"parcel_id": parcelID})
		return []models.ZoneGeometry{}, nil
	}
	defer rows.Close()

	byZone := make(map[models.ZoneType]models.ZoneGeometry, len(models.AllZoneTypes))
	for rows.Next() {
		var zoneType string
		var geomJSON *string
		if err := rows.Scan(&zoneType, &geomJSON); err != nil {
			s.log.Error("Failed to scan zone geometry", err, map[string]interface{}{"parcel_id": parcelID})
			return []models.ZoneGeometry{}, nil
		}
		zt, err := models.ParseZoneType(zoneType)
		if err != nil || geomJSON == nil {
			continue
		}
		if _, seen := byZone[zt]; seen {
			continue
		}

		features, err := zoneFeatures([]byte(*geomJSON), zt)
		if err != nil {
			s.log.Warn("Skipping malformed zone geometry", map[string]interface{}{
				"parcel_id": parcelID,
				"zone_type": zt,
				"error":     err.Error(),
			})
			continue
		}
		if len(features) == 0 {
			continue
		}
		byZone[zt] = models.ZoneGeometry{
			ZoneType: zt,
			Geometry: models.NewFeatureCollection(features),
		}
	}
	if err := rows.Err(); err != nil {
		s.log.Error("Error iterating zone geometries", err, map[string]interface{}{"parcel_id": parcelID})
		return []models.ZoneGeometry{}, nil
	}

	out := make([]models.ZoneGeometry, 0, len(byZone))
	for _, zt := range models.AllZoneTypes {
		if zg, ok := byZone[zt]; ok {
			out = append(out, zg)
		}
	}
	return out, nil
}

// GetMetadata implements datasource.MetadataSource.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}

	var value *string
	err := s.db.QueryRow(ctx, `SELECT value::text FROM metadata WHERE key = $1 LIMIT 1`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Error("Failed to load metadata", err, map[string]interface{}{"key": key})
		}
		return "", false, nil
	}
	if value == nil {
		return "", true, nil
	}
	return *value, true, nil
}

// HealthCheck implements datasource.ParcelDataSource.
func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.db == nil {
		return false
	}
	if _, err := s.db.Exec(ctx, `SELECT key FROM metadata LIMIT 1`); err != nil {
		s.log.Warn("Store health check failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// queryMeasurements runs a query selecting measurementColumns. Rows without
// a mean value are skipped.
func (s *Store) queryMeasurements(ctx context.Context, query string, args ...any) ([]models.Measurement, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index results: %w", err)
	}
	defer rows.Close()

	results := []models.Measurement{}
	for rows.Next() {
		var m models.Measurement
		var indexType string
		var acquired time.Time
		var mean *float64

		err := rows.Scan(
			&m.ParcelID,
			&indexType,
			&acquired,
			&mean,
			&m.Min,
			&m.Max,
			&m.Median,
			&m.P10,
			&m.P90,
			&m.StdDev,
			&m.ValidPixels,
			&m.CloudPixels,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index result row: %w", err)
		}

		it, err := models.ParseIndexType(indexType)
		if err != nil || mean == nil {
			continue
		}
		m.IndexType = it
		m.AcquisitionDate = models.NewDate(acquired)
		m.Mean = *mean
		if m.ValidPixels < 0 {
			m.ValidPixels = 0
		}

		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index result rows: %w", err)
	}

	return results, nil
}

// zoneFeatures decodes a stored zone geometry, which may be a
// FeatureCollection, a Feature or a bare geometry, into normalized features
// tagged with the zone type.
func zoneFeatures(raw []byte, zone models.ZoneType) ([]models.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode zone geometry: %w", err)
	}

	var candidates []models.Feature
	switch probe.Type {
	case models.FeatureCollectionTag:
		var fc models.FeatureCollection
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("failed to decode zone feature collection: %w", err)
		}
		candidates = fc.Features
	case models.GeometryFeature:
		var f models.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to decode zone feature: %w", err)
		}
		candidates = []models.Feature{f}
	default:
		var g models.Geometry
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("failed to decode zone polygon: %w", err)
		}
		candidates = []models.Feature{models.NewFeature(&g, nil)}
	}

	features := make([]models.Feature, 0, len(candidates))
	for _, f := range candidates {
		geom := geometry.NormalizeZone(f.Geometry)
		if geom == nil {
			continue
		}
		props := make(map[string]interface{}, len(f.Properties)+1)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["zone_type"] = string(zone)
		features = append(features, models.NewFeature(geom, props))
	}
	return features, nil
}
