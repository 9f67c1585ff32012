// Package geometry repairs parcel and zone geometries coming from
// heterogeneous geodata sources and derives simple shapes from them.
//
// Upstream sources deliver polygon coordinates in several broken shapes:
// flattened to a single numeric list, flattened by one level, a bare ring
// without the outer ring list, or rings whose positions are two coordinate
// pairs glued together. Normalize sniffs the shape in a fixed priority order
// and rebuilds well-formed rings. The sniffing is a best-effort repair: a
// ring of two positions is indistinguishable from other shapes, so the order
// below must not be changed without a contract from the producers.
package geometry

import (
	"bytes"
	"encoding/json"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Normalize returns the geometry as a Feature with empty properties and
// well-formed Polygon rings, or nil when there is no coordinate data.
//
// Shapes are recognised in this order, first match wins:
//  1. MultiPolygon passes through unchanged.
//  2. A flat numeric list becomes one ring of consecutive (x, y) pairs.
//  3. A first element that is a numeric list longer than two becomes one
//     ring of its consecutive pairs.
//  4. A first element that is a list of plain positions means the whole
//     structure is a single ring and is wrapped once.
//  5. Anything else is taken as already ring-nested.
//
// Every ring is then re-walked: numeric pairs are kept, numeric
// four-element entries are split into two positions, everything else is
// dropped. Degenerate rings are kept; callers decide whether to reject them.
// Normalize is idempotent.
func Normalize(g *models.Geometry) *models.Feature {
	if g == nil {
		return nil
	}

	geom := g
	if geom.Type == models.GeometryFeature {
		geom = geom.Geometry
	}
	if geom == nil || !hasRawCoordinates(geom.Coordinates) {
		return nil
	}

	if geom.Type == models.GeometryMultiPolygon {
		passthrough := &models.Geometry{
			Type:        models.GeometryMultiPolygon,
			Coordinates: append(json.RawMessage(nil), geom.Coordinates...),
		}
		feature := models.NewFeature(passthrough, nil)
		return &feature
	}

	var coords []interface{}
	if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
		return nil
	}

	geomType := geom.Type
	if geomType == "" {
		geomType = models.GeometryPolygon
	}

	repaired := &models.Geometry{Type: geomType}
	repaired.Coordinates, _ = json.Marshal(walkRings(shapeRings(coords), true))

	feature := models.NewFeature(repaired, nil)
	return &feature
}

// NormalizeZone repairs the positions of a zone polygon without any shape
// sniffing: zone producers always nest rings correctly but may emit glued
// four-number positions. Empty rings are removed and nil is returned when
// nothing usable remains. MultiPolygon zones are repaired per polygon.
func NormalizeZone(g *models.Geometry) *models.Geometry {
	if g == nil || !hasRawCoordinates(g.Coordinates) {
		return nil
	}

	geomType := g.Type
	if geomType == "" {
		geomType = models.GeometryPolygon
	}

	if geomType == models.GeometryMultiPolygon {
		var polygons []interface{}
		if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
			return nil
		}
		out := make([][][][2]float64, 0, len(polygons))
		for _, p := range polygons {
			rings, ok := p.([]interface{})
			if !ok {
				continue
			}
			if repaired := walkRings(rings, false); len(repaired) > 0 {
				out = append(out, repaired)
			}
		}
		if len(out) == 0 {
			return nil
		}
		raw, _ := json.Marshal(out)
		return &models.Geometry{Type: geomType, Coordinates: raw}
	}

	var rings []interface{}
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil
	}
	repaired := walkRings(rings, false)
	if len(repaired) == 0 {
		return nil
	}
	raw, _ := json.Marshal(repaired)
	return &models.Geometry{Type: geomType, Coordinates: raw}
}

// shapeRings applies the priority-ordered shape detection and returns a
// list of candidate rings.
func shapeRings(coords []interface{}) []interface{} {
	if len(coords) == 0 {
		return coords
	}

	if isNumber(coords[0]) {
		return []interface{}{pairwise(coords)}
	}

	first, ok := coords[0].([]interface{})
	if !ok {
		return coords
	}
	if len(first) > 2 && isNumber(first[0]) {
		return []interface{}{pairwise(first)}
	}
	if len(first) == 0 || !isArray(first[0]) {
		return []interface{}{coords}
	}

	return coords
}

// walkRings rebuilds each candidate ring from its usable positions.
func walkRings(candidates []interface{}, keepEmpty bool) [][][2]float64 {
	rings := make([][][2]float64, 0, len(candidates))
	for _, candidate := range candidates {
		ring, ok := candidate.([]interface{})
		if !ok {
			continue
		}

		out := make([][2]float64, 0, len(ring))
		for _, entry := range ring {
			pos, ok := entry.([]interface{})
			if !ok {
				continue
			}
			nums, ok := numbers(pos)
			if !ok {
				continue
			}
			switch len(nums) {
			case 2:
				out = append(out, [2]float64{nums[0], nums[1]})
			case 4:
				out = append(out, [2]float64{nums[0], nums[1]}, [2]float64{nums[2], nums[3]})
			}
		}

		if len(out) == 0 && !keepEmpty {
			continue
		}
		rings = append(rings, out)
	}
	return rings
}

// pairwise groups a flat list into two-element positions. A dangling last
// value is dropped.
func pairwise(values []interface{}) []interface{} {
	ring := make([]interface{}, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		ring = append(ring, []interface{}{values[i], values[i+1]})
	}
	return ring
}

func numbers(values []interface{}) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func isNumber(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

func hasRawCoordinates(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
