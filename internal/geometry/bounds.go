package geometry

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// BBox is an axis-aligned bounding box in WGS84 degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Center returns the box center as (lat, lng).
func (b BBox) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// HasArea reports whether the box spans more than a single point.
func (b BBox) HasArea() bool {
	return b.MinLat != b.MaxLat || b.MinLng != b.MaxLng
}

// Bounds computes the bounding box of every position of a normalized
// feature. ok is false when there are no positions or the box collapses to
// a point, in which case callers fall back to a default view.
func Bounds(f *models.Feature) (BBox, bool) {
	if f == nil || f.Geometry == nil {
		return BBox{}, false
	}

	var rings [][][2]float64
	if f.Geometry.Type == models.GeometryMultiPolygon {
		polygons, err := f.Geometry.Polygons()
		if err != nil {
			return BBox{}, false
		}
		for _, p := range polygons {
			rings = append(rings, p...)
		}
	} else {
		var err error
		rings, err = f.Geometry.Rings()
		if err != nil {
			return BBox{}, false
		}
	}

	box, ok := bboxOf(envelope(rings...))
	if !ok || !box.HasArea() {
		return BBox{}, false
	}
	return box, true
}

// envelope extends an empty envelope over every finite position.
func envelope(rings ...[][2]float64) geom.Envelope {
	var env geom.Envelope
	for _, ring := range rings {
		for _, pos := range ring {
			if !finite(pos[0]) || !finite(pos[1]) {
				continue
			}
			env = env.ExpandToIncludeXY(geom.XY{X: pos[0], Y: pos[1]})
		}
	}
	return env
}

func bboxOf(env geom.Envelope) (BBox, bool) {
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return BBox{}, false
	}
	return BBox{MinLng: lo.X, MinLat: lo.Y, MaxLng: hi.X, MaxLat: hi.Y}, true
}

func ringBounds(rings ...[][2]float64) (BBox, bool) {
	return bboxOf(envelope(rings...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
