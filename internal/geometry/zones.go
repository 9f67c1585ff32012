package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Representative NDRE values attached to synthesized bands for display.
var bandDisplayValues = map[models.ZoneType]float64{
	models.ZoneRed:    0.12,
	models.ZoneYellow: 0.17,
	models.ZoneGreen:  0.22,
}

// minZoneRingPositions is the smallest first ring worth partitioning.
const minZoneRingPositions = 4

// SynthesizeZones splits the parcel bounding box into three horizontal
// bands of equal height, tagged red, yellow and green from south to north.
// It is a placeholder partition for when no zone geometry exists upstream,
// not a classification of the raster.
//
// An empty slice is returned when the geometry is missing, its first ring
// has fewer than four positions or its bounding box has no height. For a
// MultiPolygon only the first polygon is used.
func SynthesizeZones(parcel *models.Geometry) []models.ZoneGeometry {
	geomIn := parcel
	if geomIn != nil && geomIn.Type == models.GeometryFeature {
		geomIn = geomIn.Geometry
	}
	if geomIn == nil || !geomIn.HasCoordinates() {
		return []models.ZoneGeometry{}
	}

	if geomIn.Type == models.GeometryMultiPolygon {
		var polygons []json.RawMessage
		if err := json.Unmarshal(geomIn.Coordinates, &polygons); err != nil || len(polygons) == 0 {
			return []models.ZoneGeometry{}
		}
		geomIn = &models.Geometry{Type: models.GeometryPolygon, Coordinates: polygons[0]}
	}

	normalized := Normalize(geomIn)
	if normalized == nil {
		return []models.ZoneGeometry{}
	}
	rings, err := normalized.Geometry.Rings()
	if err != nil || len(rings) == 0 || len(rings[0]) < minZoneRingPositions {
		return []models.ZoneGeometry{}
	}

	outline := geom.NewPolygon([]geom.LineString{lineString(rings[0])})
	lo, hi, ok := outline.Envelope().MinMaxXYs()
	if !ok || lo.Y == hi.Y {
		return []models.ZoneGeometry{}
	}
	step := (hi.Y - lo.Y) / float64(len(models.AllZoneTypes))

	zones := make([]models.ZoneGeometry, 0, len(models.AllZoneTypes))
	for i, zone := range models.AllZoneTypes {
		south := lo.Y + step*float64(i)
		north := lo.Y + step*float64(i+1)
		if i == len(models.AllZoneTypes)-1 {
			north = hi.Y
		}

		band, err := bandPolygon(lo.X, south, hi.X, north)
		if err != nil {
			return []models.ZoneGeometry{}
		}
		feature := models.NewFeature(band, map[string]interface{}{
			"zone_type":   string(zone),
			"value":       bandDisplayValues[zone],
			"synthesized": true,
		})

		zones = append(zones, models.ZoneGeometry{
			ZoneType: zone,
			Geometry: models.NewFeatureCollection([]models.Feature{feature}),
		})
	}
	return zones
}

// bandPolygon builds the closed rectangle between two latitudes.
func bandPolygon(west, south, east, north float64) (*models.Geometry, error) {
	ring := geom.NewLineString(geom.NewSequence([]float64{
		west, south,
		east, south,
		east, north,
		west, north,
		west, south,
	}, geom.DimXY))

	poly := geom.NewPolygon([]geom.LineString{ring})
	if err := poly.Validate(); err != nil {
		return nil, fmt.Errorf("invalid zone band: %w", err)
	}

	raw, err := poly.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode zone band: %w", err)
	}
	var out models.Geometry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode zone band: %w", err)
	}
	return &out, nil
}

func lineString(ring [][2]float64) geom.LineString {
	flat := make([]float64, 0, len(ring)*2)
	for _, pos := range ring {
		flat = append(flat, pos[0], pos[1])
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}
