package datasource

import (
	"sort"
	"time"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// SortAscending orders measurements by acquisition date, oldest first.
func SortAscending(ms []models.Measurement) []models.Measurement {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].AcquisitionDate.Before(ms[j].AcquisitionDate.Time)
	})
	return ms
}

// SortDescending orders measurements by acquisition date, newest first.
func SortDescending(ms []models.Measurement) []models.Measurement {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].AcquisitionDate.After(ms[j].AcquisitionDate.Time)
	})
	return ms
}

// Cutoff returns the oldest date still inside a window of daysBack days
// ending at now.
func Cutoff(now time.Time, daysBack int) models.Date {
	return models.NewDate(now.AddDate(0, 0, -daysBack))
}

// FilterSince keeps measurements acquired on or after cutoff.
func FilterSince(ms []models.Measurement, cutoff models.Date) []models.Measurement {
	out := make([]models.Measurement, 0, len(ms))
	for _, m := range ms {
		if !m.AcquisitionDate.Before(cutoff.Time) {
			out = append(out, m)
		}
	}
	return out
}

// Limit truncates ms to at most n entries. n <= 0 means no limit.
func Limit(ms []models.Measurement, n int) []models.Measurement {
	if n > 0 && len(ms) > n {
		return ms[:n]
	}
	return ms
}

// TimeSeries shapes raw measurements of one index into a chart series:
// inside the window, ascending, one entry per date. When a date repeats the
// later entry wins.
func TimeSeries(ms []models.Measurement, now time.Time, daysBack int) []models.Measurement {
	series := SortAscending(FilterSince(ms, Cutoff(now, daysBack)))

	out := make([]models.Measurement, 0, len(series))
	for _, m := range series {
		if n := len(out); n > 0 && out[n-1].AcquisitionDate.Equal(m.AcquisitionDate.Time) {
			out[n-1] = m
			continue
		}
		out = append(out, m)
	}
	return out
}

// LatestPerIndex picks the most recent measurement of each index type, in
// NDVI, NDMI, NDRE order. Index types without data are omitted.
func LatestPerIndex(ms []models.Measurement) []models.Measurement {
	latest := make(map[models.IndexType]models.Measurement, len(models.AllIndexTypes))
	for _, m := range ms {
		current, ok := latest[m.IndexType]
		if !ok || m.AcquisitionDate.After(current.AcquisitionDate.Time) {
			latest[m.IndexType] = m
		}
	}

	out := make([]models.Measurement, 0, len(latest))
	for _, t := range models.AllIndexTypes {
		if m, ok := latest[t]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ZoneClassificationsFromPercentages builds the red, yellow and green
// classifications with their fixed advice.
func ZoneClassificationsFromPercentages(red, yellow, green float64) []models.ZoneClassification {
	percentages := map[models.ZoneType]float64{
		models.ZoneRed:    red,
		models.ZoneYellow: yellow,
		models.ZoneGreen:  green,
	}

	out := make([]models.ZoneClassification, 0, len(models.AllZoneTypes))
	for _, z := range models.AllZoneTypes {
		out = append(out, models.ZoneClassification{
			ZoneType:       z,
			Percentage:     percentages[z],
			Recommendation: models.ZoneAdvice(z),
		})
	}
	return out
}
