package models

import (
	"fmt"
	"strings"
)

// IndexType identifies a vegetation or moisture index derived from
// multispectral imagery.
type IndexType string

const (
	IndexNDVI IndexType = "NDVI"
	IndexNDMI IndexType = "NDMI"
	IndexNDRE IndexType = "NDRE"
)

// AllIndexTypes lists the indices in the order the dashboard fetches them.
var AllIndexTypes = []IndexType{IndexNDVI, IndexNDMI, IndexNDRE}

// ParseIndexType converts a case-insensitive name into an IndexType.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(strings.ToUpper(strings.TrimSpace(s))) {
	case IndexNDVI:
		return IndexNDVI, nil
	case IndexNDMI:
		return IndexNDMI, nil
	case IndexNDRE:
		return IndexNDRE, nil
	}
	return "", fmt.Errorf("unknown index type %q", s)
}

// Valid reports whether the index type is one of the known indices.
func (t IndexType) Valid() bool {
	_, err := ParseIndexType(string(t))
	return err == nil
}

func (t IndexType) String() string {
	return string(t)
}

// RasterLayer names a raster product the processing backend can regenerate.
// It covers the three indices plus the NDRE zone value raster.
type RasterLayer string

const (
	RasterNDVI      RasterLayer = "NDVI"
	RasterNDMI      RasterLayer = "NDMI"
	RasterNDRE      RasterLayer = "NDRE"
	RasterNDREValue RasterLayer = "NDRE_VALUE"
)

// AllRasterLayers lists every raster refreshed after a dashboard load.
var AllRasterLayers = []RasterLayer{RasterNDVI, RasterNDMI, RasterNDRE, RasterNDREValue}
