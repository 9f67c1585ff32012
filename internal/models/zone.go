package models

import "fmt"

// ZoneType is the coarse classification of a parcel sub-area.
type ZoneType string

const (
	ZoneRed    ZoneType = "red"
	ZoneYellow ZoneType = "yellow"
	ZoneGreen  ZoneType = "green"
)

// AllZoneTypes lists zones from the worst to the best, which is also the
// south-to-north order of synthesized bands.
var AllZoneTypes = []ZoneType{ZoneRed, ZoneYellow, ZoneGreen}

// NDRE thresholds separating the zones.
const (
	NDRERedUpper    = 0.14
	NDREYellowUpper = 0.19
)

// ParseZoneType validates a zone type string.
func ParseZoneType(s string) (ZoneType, error) {
	switch ZoneType(s) {
	case ZoneRed, ZoneYellow, ZoneGreen:
		return ZoneType(s), nil
	}
	return "", fmt.Errorf("unknown zone type %q", s)
}

// ZoneAdvice returns the fixed fertilization advice for a zone.
func ZoneAdvice(z ZoneType) string {
	switch z {
	case ZoneRed:
		return "Apply more nitrogen. NDRE below 0.14 indicates a nitrogen deficit."
	case ZoneYellow:
		return "Standard treatment. NDRE is in the optimal 0.14-0.19 range."
	case ZoneGreen:
		return "Nitrogen can be reduced. NDRE of 0.19 or more indicates healthy crops."
	}
	return ""
}

// ZoneClassification is the share of the parcel area falling in one zone.
type ZoneClassification struct {
	ZoneType       ZoneType `json:"zone_type"`
	Percentage     float64  `json:"percentage"`
	Recommendation string   `json:"recommendation"`
}

// ZoneGeometry holds the polygons of one zone, each feature tagged with the
// zone type.
type ZoneGeometry struct {
	ZoneType ZoneType          `json:"zone_type"`
	Geometry FeatureCollection `json:"geometry"`
}
