package geoserver

import (
	"time"

	"github.com/stwalsh4118/fieldwatch/internal/config"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Config holds the endpoints and query defaults of the source.
type Config struct {
	ParcelServerURL string
	GeoServerURL    string
	Workspace       string
	ParcelLayer     string
	KatOpstina      string
	DataDir         string
	CSVDays         int
	CSVCloud        int
	RefreshDays     int
	RefreshCloud    int
	CacheTTL        time.Duration
	RequestTimeout  time.Duration
	ValueLayers     map[models.IndexType]string
}

// ConfigFromApp maps the application configuration onto the source config.
func ConfigFromApp(cfg config.GeoServerConfig) Config {
	layers := make(map[models.IndexType]string, len(cfg.ValueLayers))
	for name, layer := range cfg.ValueLayers {
		if t, err := models.ParseIndexType(name); err == nil && layer != "" {
			layers[t] = layer
		}
	}

	return Config{
		ParcelServerURL: cfg.ParcelServerURL,
		GeoServerURL:    cfg.GeoServerURL,
		Workspace:       cfg.Workspace,
		ParcelLayer:     cfg.ParcelLayer,
		KatOpstina:      cfg.KatOpstina,
		DataDir:         cfg.DataDir,
		CSVDays:         cfg.CSVDays,
		CSVCloud:        cfg.CSVCloud,
		RefreshDays:     cfg.RefreshDays,
		RefreshCloud:    cfg.RefreshCloud,
		CacheTTL:        cfg.CSVCacheTTL,
		RequestTimeout:  cfg.RequestTimeout,
		ValueLayers:     layers,
	}
}

func (c Config) withDefaults() Config {
	if c.CSVDays <= 0 {
		c.CSVDays = 5 * 365
	}
	if c.CSVCloud <= 0 {
		c.CSVCloud = 100
	}
	if c.RefreshDays <= 0 {
		c.RefreshDays = 30
	}
	if c.RefreshCloud <= 0 {
		c.RefreshCloud = 80
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Minute
	}
	if c.ValueLayers == nil {
		c.ValueLayers = map[models.IndexType]string{}
	}
	return c
}

func (c Config) owsURL() string {
	return c.GeoServerURL + "/" + c.Workspace + "/ows"
}

func (c Config) wmsURL() string {
	return c.GeoServerURL + "/" + c.Workspace + "/wms"
}
