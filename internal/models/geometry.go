package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GeoJSON type tags used across the dashboard.
const (
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
	GeometryFeature      = "Feature"
	FeatureCollectionTag = "FeatureCollection"
)

// Geometry is a GeoJSON-like geometry as delivered by an upstream source.
// Coordinates are kept undecoded because upstream sources disagree on their
// nesting; geometry.Normalize turns them into proper rings.
// A Feature wrapper carries its payload in Geometry and Properties instead.
type Geometry struct {
	Type        string                 `json:"type"`
	Coordinates json.RawMessage        `json:"coordinates,omitempty"`
	Geometry    *Geometry              `json:"geometry,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// NewPolygon builds a Polygon geometry from well-formed rings.
func NewPolygon(rings [][][2]float64) *Geometry {
	if rings == nil {
		rings = [][][2]float64{}
	}
	raw, _ := json.Marshal(rings)
	return &Geometry{Type: GeometryPolygon, Coordinates: raw}
}

// HasCoordinates reports whether the geometry carries any coordinate payload,
// looking through a Feature wrapper.
func (g *Geometry) HasCoordinates() bool {
	if g == nil {
		return false
	}
	if g.Type == GeometryFeature {
		return g.Geometry.HasCoordinates()
	}
	trimmed := bytes.TrimSpace(g.Coordinates)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Rings decodes the coordinates as Polygon rings. It only succeeds on
// geometries that are already well-formed, e.g. the output of normalization.
func (g *Geometry) Rings() ([][][2]float64, error) {
	if !g.HasCoordinates() {
		return nil, nil
	}
	var rings [][][2]float64
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("failed to decode polygon rings: %w", err)
	}
	return rings, nil
}

// Polygons decodes the coordinates as MultiPolygon polygons.
func (g *Geometry) Polygons() ([][][][2]float64, error) {
	if !g.HasCoordinates() {
		return nil, nil
	}
	var polygons [][][][2]float64
	if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
		return nil, fmt.Errorf("failed to decode multipolygon coordinates: %w", err)
	}
	return polygons, nil
}

// Scan implements sql.Scanner for jsonb geometry columns.
func (g *Geometry) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Geometry: expected []byte, got %T", value)
	}

	var decoded Geometry
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to unmarshal geometry: %w", err)
	}

	*g = decoded
	return nil
}

// Value implements driver.Valuer, writing the geometry as GeoJSON text.
func (g Geometry) Value() (driver.Value, error) {
	if !g.HasCoordinates() {
		return nil, nil
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry to GeoJSON: %w", err)
	}

	return string(data), nil
}

// Feature is a GeoJSON Feature.
type Feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *Geometry              `json:"geometry"`
}

// NewFeature wraps a geometry in a Feature. Nil properties become an empty
// object so renderers never see a null.
func NewFeature(geom *Geometry, properties map[string]interface{}) Feature {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return Feature{
		Type:       GeometryFeature,
		Properties: properties,
		Geometry:   geom,
	}
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection builds a collection, never with a null feature list.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: FeatureCollectionTag, Features: features}
}
