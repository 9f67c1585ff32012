package models

import "strings"

// Parcel is the cadastral parcel shown on the dashboard.
// The identifier is a cadastral number such as "1427/2" and may contain a slash.
type Parcel struct {
	ParcelID     string    `json:"parcel_id"`
	Municipality string    `json:"municipality"`
	AreaHa       *float64  `json:"area_ha"`
	Geometry     *Geometry `json:"geometry"`
}

// SafeID returns the parcel identifier with slashes replaced by underscores,
// as used in file names.
func SafeID(parcelID string) string {
	return strings.ReplaceAll(parcelID, "/", "_")
}
