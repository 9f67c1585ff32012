package services

import "github.com/stwalsh4118/fieldwatch/internal/models"

// Interpretation is a human-readable reading of an index value.
type Interpretation struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// PointValue is the index value sampled at a map coordinate. Value is nil
// when there is no data at the point.
type PointValue struct {
	IndexType      models.IndexType `json:"index_type"`
	Lat            float64          `json:"lat"`
	Lng            float64          `json:"lng"`
	Value          *float64         `json:"value"`
	Interpretation *Interpretation  `json:"interpretation"`
}

type band struct {
	upper float64
	Interpretation
}

var (
	ndviBands = []band{
		{0.2, Interpretation{"Bare soil / no vegetation", "#8B4513"}},
		{0.4, Interpretation{"Sparse vegetation", "#DAA520"}},
		{0.6, Interpretation{"Moderate vegetation", "#9ACD32"}},
		{0.8, Interpretation{"Dense vegetation", "#228B22"}},
	}
	ndviTop = Interpretation{"Very dense vegetation", "#006400"}

	ndmiBands = []band{
		{-0.2, Interpretation{"Dry soil", "#8B4513"}},
		{0, Interpretation{"Low moisture", "#DAA520"}},
		{0.2, Interpretation{"Moderate moisture", "#4682B4"}},
		{0.4, Interpretation{"High moisture", "#1E90FF"}},
	}
	ndmiTop = Interpretation{"Very high moisture", "#0000CD"}

	ndreBands = []band{
		{models.NDRERedUpper, Interpretation{"Problem zone", "#FF4444"}},
		{models.NDREYellowUpper, Interpretation{"Moderate zone", "#DAA520"}},
	}
	ndreTop = Interpretation{"Good zone", "#44FF44"}
)

// Interpret maps a value onto the display band of its index.
func Interpret(indexType models.IndexType, value float64) *Interpretation {
	var bands []band
	var top Interpretation

	switch indexType {
	case models.IndexNDVI:
		bands, top = ndviBands, ndviTop
	case models.IndexNDMI:
		bands, top = ndmiBands, ndmiTop
	case models.IndexNDRE:
		bands, top = ndreBands, ndreTop
	default:
		return nil
	}

	for _, b := range bands {
		if value < b.upper {
			i := b.Interpretation
			return &i
		}
	}
	return &top
}
