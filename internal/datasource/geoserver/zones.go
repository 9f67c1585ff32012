package geoserver

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/geometry"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// zoneStats is the response of the processing server /zone_stats route.
type zoneStats struct {
	OK        bool    `json:"ok"`
	Total     int64   `json:"total"`
	RedPct    float64 `json:"red_pct"`
	YellowPct float64 `json:"yellow_pct"`
	GreenPct  float64 `json:"green_pct"`
}

// GetZoneClassifications implements datasource.ParcelDataSource. A result is
// only returned when the processing server counted at least one pixel.
func (s *Source) GetZoneClassifications(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error) {
	if indexType != models.IndexNDRE {
		return []models.ZoneClassification{}, nil
	}

	params := url.Values{
		"parcel":      {parcelID},
		"layer":       {s.cfg.ParcelLayer},
		"kat_opstina": {s.cfg.KatOpstina},
	}

	var stats zoneStats
	if err := s.client.GetJSON(ctx, s.cfg.ParcelServerURL+"/zone_stats?"+params.Encode(), &stats); err != nil {
		s.log.Warn("Zone statistics unavailable", map[string]interface{}{
			"parcel_id": parcelID,
			"error":     err.Error(),
		})
		return []models.ZoneClassification{}, nil
	}
	if !stats.OK || stats.Total <= 0 {
		return []models.ZoneClassification{}, nil
	}

	return datasource.ZoneClassificationsFromPercentages(stats.RedPct, stats.YellowPct, stats.GreenPct), nil
}

// GetZoneGeometries implements datasource.ParcelDataSource. Zone polygons
// are read from the local file ndre_zones_<id>.geojson, grouped by the
// zone_type (or zone) property. Zones without features are omitted.
func (s *Source) GetZoneGeometries(_ context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneGeometry, error) {
	if indexType != models.IndexNDRE {
		return []models.ZoneGeometry{}, nil
	}

	name := filepath.Join(s.cfg.DataDir, "ndre_zones_"+models.SafeID(parcelID)+".geojson")
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return []models.ZoneGeometry{}, nil
	}

	var fc models.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		s.log.Warn("Ignoring unreadable zone file", map[string]interface{}{
			"file":  name,
			"error": err.Error(),
		})
		return []models.ZoneGeometry{}, nil
	}

	return groupZoneFeatures(fc.Features), nil
}

func groupZoneFeatures(features []models.Feature) []models.ZoneGeometry {
	grouped := make(map[models.ZoneType][]models.Feature, len(models.AllZoneTypes))
	for _, f := range features {
		name := stringProp(f.Properties, "zone_type")
		if name == "" {
			name = stringProp(f.Properties, "zone")
		}
		zone, err := models.ParseZoneType(name)
		if err != nil {
			continue
		}

		geom := geometry.NormalizeZone(f.Geometry)
		if geom == nil {
			continue
		}

		props := make(map[string]interface{}, len(f.Properties)+1)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["zone_type"] = string(zone)
		grouped[zone] = append(grouped[zone], models.NewFeature(geom, props))
	}

	out := make([]models.ZoneGeometry, 0, len(grouped))
	for _, zone := range models.AllZoneTypes {
		if fs := grouped[zone]; len(fs) > 0 {
			out = append(out, models.ZoneGeometry{
				ZoneType: zone,
				Geometry: models.NewFeatureCollection(fs),
			})
		}
	}
	return out
}
