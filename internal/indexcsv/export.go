package indexcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// ExportHeader is the header line of the time-series download.
var ExportHeader = []string{"date", "mean", "median", "min", "max", "valid_pixels", "cloud_pixels"}

// WriteExport writes measurements as a UTF-8 CSV with a byte order mark so
// spreadsheet tools pick the right encoding. Missing statistics are blank.
func WriteExport(w io.Writer, measurements []models.Measurement) error {
	bom := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bom)

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, m := range measurements {
		record := []string{
			m.AcquisitionDate.String(),
			formatFloat(&m.Mean),
			formatFloat(m.Median),
			formatFloat(m.Min),
			formatFloat(m.Max),
			strconv.Itoa(m.ValidPixels),
			strconv.Itoa(m.CloudPixels),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := bom.Close(); err != nil {
		return fmt.Errorf("failed to finish export: %w", err)
	}
	return nil
}

// ExportFilename names the download for a parcel and index.
func ExportFilename(parcelID string, indexType models.IndexType) string {
	return fmt.Sprintf("timeseries_%s_%s_5y.csv", models.SafeID(parcelID), indexType)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
