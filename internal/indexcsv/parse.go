// Package indexcsv reads the per-index statistics CSV produced by the parcel
// processing server and writes the time-series export offered to users.
package indexcsv

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Row maps a header name to the raw cell text of one data line.
type Row map[string]string

// Column names emitted by the statistical API export. Each column is also
// accepted under its bare name (date, mean, ...).
const (
	ColDate        = "C0/date"
	ColMean        = "C0/mean"
	ColMin         = "C0/min"
	ColMax         = "C0/max"
	ColMedian      = "C0/median"
	ColP10         = "C0/p10"
	ColP90         = "C0/p90"
	ColStdDev      = "C0/stDev"
	ColSampleCount = "C0/sampleCount"
	ColNoDataCount = "C0/noDataCount"
)

// Parse splits raw CSV text into rows keyed by the header line.
//
// Lines may end in LF or CRLF and blank lines are skipped. Cells are split
// positionally on commas and trimmed; a missing trailing cell reads as "".
// Quoting is not supported: the producer never emits commas inside cells.
// A leading UTF-8 byte order mark is removed.
func Parse(raw string) []Row {
	text := stripBOM(raw)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var header []string
	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")
		if header == nil {
			header = make([]string, len(cells))
			for i, c := range cells {
				header[i] = strings.TrimSpace(c)
			}
			continue
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i < len(cells) {
				row[name] = strings.TrimSpace(cells[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ToRecord converts a parsed row into a measurement, or returns nil when the
// row has no usable acquisition date or no finite mean. Other statistics
// that are blank or not finite become nil.
func ToRecord(row Row, parcelID string, indexType models.IndexType) *models.Measurement {
	date, ok := rowDate(row.get(ColDate))
	if !ok {
		return nil
	}
	mean := toNumber(row.get(ColMean))
	if mean == nil {
		return nil
	}

	sampleCount := toCount(row.get(ColSampleCount))
	noDataCount := toCount(row.get(ColNoDataCount))
	valid := sampleCount - noDataCount
	if valid < 0 {
		valid = 0
	}

	return &models.Measurement{
		ParcelID:        parcelID,
		IndexType:       indexType,
		AcquisitionDate: date,
		Mean:            *mean,
		Min:             toNumber(row.get(ColMin)),
		Max:             toNumber(row.get(ColMax)),
		Median:          toNumber(row.get(ColMedian)),
		P10:             toNumber(row.get(ColP10)),
		P90:             toNumber(row.get(ColP90)),
		StdDev:          toNumber(row.get(ColStdDev)),
		ValidPixels:     valid,
		CloudPixels:     noDataCount,
	}
}

// Records parses raw CSV text and keeps every row that converts into a
// measurement, in input order.
func Records(raw, parcelID string, indexType models.IndexType) []models.Measurement {
	rows := Parse(raw)
	out := make([]models.Measurement, 0, len(rows))
	for _, row := range rows {
		if m := ToRecord(row, parcelID, indexType); m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// get returns the cell for a producer column, falling back to its bare name.
func (r Row) get(column string) string {
	if v, ok := r[column]; ok {
		return v
	}
	if i := strings.LastIndexByte(column, '/'); i >= 0 {
		return r[column[i+1:]]
	}
	return ""
}

func rowDate(cell string) (models.Date, bool) {
	s := strings.TrimSpace(cell)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return models.Date{}, false
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, false
	}
	return d, true
}

func toNumber(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// toCount reads the leading integer of a cell ("100", "100.0", "12px"),
// defaulting to 0.
func toCount(cell string) int {
	s := strings.TrimSpace(cell)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func stripBOM(raw string) string {
	text, _, err := transform.String(unicode.UTF8BOM.NewDecoder(), raw)
	if err != nil {
		return raw
	}
	return text
}
