package geoserver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// rasterEndpoints maps each raster layer to the processing server route
// that regenerates and publishes it.
var rasterEndpoints = map[models.RasterLayer]string{
	models.RasterNDVI:      "/run",
	models.RasterNDMI:      "/ndmi",
	models.RasterNDRE:      "/ndre",
	models.RasterNDREValue: "/ndre_value",
}

type refreshPayload struct {
	OK     bool   `json:"ok"`
	Stdout string `json:"stdout"`
}

// RefreshAllRasterLayers implements datasource.RasterRefresher. Every layer
// is requested concurrently; the call returns once all of them settled.
// When the processing server reported a latest acquisition date, rasters
// are rendered for that date.
func (s *Source) RefreshAllRasterLayers(ctx context.Context, parcelID string) ([]datasource.RefreshResult, error) {
	results := make([]datasource.RefreshResult, len(models.AllRasterLayers))

	var g errgroup.Group
	for i, layer := range models.AllRasterLayers {
		i, layer := i, layer
		g.Go(func() error {
			err := s.refreshRasterLayer(ctx, parcelID, layer)
			if err != nil {
				s.log.Warn("Raster refresh failed", map[string]interface{}{
					"parcel_id": parcelID,
					"layer":     layer,
					"error":     err.Error(),
				})
			}
			results[i] = datasource.RefreshResult{Layer: layer, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *Source) refreshRasterLayer(ctx context.Context, parcelID string, layer models.RasterLayer) error {
	endpoint, ok := rasterEndpoints[layer]
	if !ok {
		return fmt.Errorf("no refresh endpoint for layer %s", layer)
	}

	params := url.Values{
		"parcel":      {parcelID},
		"days":        {strconv.Itoa(s.cfg.RefreshDays)},
		"cloud":       {strconv.Itoa(s.cfg.RefreshCloud)},
		"layer":       {s.cfg.ParcelLayer},
		"kat_opstina": {s.cfg.KatOpstina},
	}
	date := s.LatestDate()
	if date != "" {
		params.Set("date", date)
	}

	s.log.Info("Refreshing raster layer", map[string]interface{}{
		"parcel_id": parcelID,
		"layer":     layer,
		"date":      date,
	})

	var payload refreshPayload
	if err := s.client.GetJSON(ctx, s.cfg.ParcelServerURL+endpoint+"?"+params.Encode(), &payload); err != nil {
		return err
	}

	s.log.Info("Raster layer refreshed", map[string]interface{}{
		"parcel_id": parcelID,
		"layer":     layer,
		"output":    lastLines(payload.Stdout, 2),
	})
	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
