package models

// Measurement is one index observation of a parcel on an acquisition date.
// Mean is mandatory; every other statistic may be missing upstream.
// Values are produced fresh per query and only read afterwards.
type Measurement struct {
	ParcelID        string    `json:"parcel_id"`
	IndexType       IndexType `json:"index_type"`
	AcquisitionDate Date      `json:"acquisition_date"`
	Mean            float64   `json:"mean_value"`
	Min             *float64  `json:"min_value"`
	Max             *float64  `json:"max_value"`
	Median          *float64  `json:"percentile_50"`
	P10             *float64  `json:"percentile_10,omitempty"`
	P90             *float64  `json:"percentile_90,omitempty"`
	StdDev          *float64  `json:"std_dev"`
	ValidPixels     int       `json:"valid_pixels"`
	CloudPixels     int       `json:"cloud_pixels"`
}
