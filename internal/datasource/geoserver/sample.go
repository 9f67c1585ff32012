package geoserver

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Query window around a sampled point. GetFeatureInfo needs a map extent;
// the point sits in the center pixel of a small square image.
const (
	sampleHalfSpanDeg = 0.0005
	samplePixels      = 101
)

// noDataValues are raster fill values that mean "no measurement".
var noDataValues = []float64{-999, -9999, 0}

// featureInfo is the JSON response of a WMS GetFeatureInfo request.
type featureInfo struct {
	Features []struct {
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

// SampleValue implements datasource.PointSampler by querying the value
// raster of the index at (lat, lng). A nil value means the point lies
// outside the raster or on a no-data pixel.
func (s *Source) SampleValue(ctx context.Context, indexType models.IndexType, lat, lng float64) (*float64, error) {
	layer := s.cfg.ValueLayers[indexType]
	if layer == "" {
		return nil, nil
	}

	center := strconv.Itoa(samplePixels / 2)
	bbox := fmt.Sprintf("%f,%f,%f,%f",
		lng-sampleHalfSpanDeg, lat-sampleHalfSpanDeg,
		lng+sampleHalfSpanDeg, lat+sampleHalfSpanDeg)

	params := url.Values{
		"SERVICE":      {"WMS"},
		"VERSION":      {"1.1.1"},
		"REQUEST":      {"GetFeatureInfo"},
		"LAYERS":       {layer},
		"QUERY_LAYERS": {layer},
		"STYLES":       {"raster"},
		"BBOX":         {bbox},
		"WIDTH":        {strconv.Itoa(samplePixels)},
		"HEIGHT":       {strconv.Itoa(samplePixels)},
		"SRS":          {"EPSG:4326"},
		"INFO_FORMAT":  {"application/json"},
		"X":            {center},
		"Y":            {center},
	}

	var info featureInfo
	if err := s.client.GetJSON(ctx, s.cfg.wmsURL()+"?"+params.Encode(), &info); err != nil {
		s.log.Warn("GetFeatureInfo failed", map[string]interface{}{
			"index_type": indexType,
			"lat":        lat,
			"lng":        lng,
			"error":      err.Error(),
		})
		return nil, nil
	}

	return extractValue(info), nil
}

func extractValue(info featureInfo) *float64 {
	if len(info.Features) == 0 {
		return nil
	}
	props := info.Features[0].Properties

	for _, key := range []string{"GRAY_INDEX", "gray_index", "BAND_1", "band_1"} {
		if _, present := props[key]; !present || props[key] == nil {
			continue
		}
		v, ok := numberProp(props, key)
		if !ok || math.IsNaN(v) {
			return nil
		}
		for _, nd := range noDataValues {
			if v == nd {
				return nil
			}
		}
		return &v
	}
	return nil
}
