// Package geoserver implements the dashboard data source on top of a
// GeoServer instance and the parcel processing server that renders index
// rasters and statistics on demand.
//
// Parcel outlines come from local GeoJSON files or a WFS query. Index
// statistics come from the processing server as CSV, one request per index,
// cached per parcel and index.
package geoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/indexcsv"
	"github.com/stwalsh4118/fieldwatch/internal/logger"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Name is the backend identifier reported by the source.
const Name = "geoserver"

// healthCheckTimeout bounds the GetCapabilities probe.
const healthCheckTimeout = 8 * time.Second

// csvCacheSize bounds the number of (parcel, index) entries kept.
const csvCacheSize = 256

var latestDatePattern = regexp.MustCompile(`LATEST_DATE=(\d{4}-\d{2}-\d{2})`)

// csvEndpoints maps each index to the processing server route returning its
// statistics CSV.
var csvEndpoints = map[models.IndexType]string{
	models.IndexNDVI: "/csv",
	models.IndexNDMI: "/ndmi_csv",
	models.IndexNDRE: "/ndre_csv",
}

var errEmptyPayload = errors.New("processing server returned no csv")

// csvPayload is the JSON envelope of the processing server.
type csvPayload struct {
	OK     bool   `json:"ok"`
	CSV    string `json:"csv"`
	Stdout string `json:"stdout"`
	Error  string `json:"error"`
}

// Source reads dashboard data from GeoServer and the processing server.
type Source struct {
	cfg    Config
	client *Client
	fs     afero.Fs
	log    *logger.Logger
	now    func() time.Time

	cache  *expirable.LRU[string, []indexcsv.Row]
	flight singleflight.Group

	mu         sync.RWMutex
	latestDate string
}

var (
	_ datasource.ParcelDataSource = (*Source)(nil)
	_ datasource.RasterRefresher  = (*Source)(nil)
	_ datasource.PointSampler     = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithHTTPDoer replaces the HTTP client used for upstream calls.
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(s *Source) {
		s.client = NewClient(doer, Name, "fieldwatch")
	}
}

// WithFs replaces the filesystem holding the local GeoJSON files.
func WithFs(fs afero.Fs) Option {
	return func(s *Source) {
		s.fs = fs
	}
}

// WithClock overrides the time source used for date windows.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// New creates a Source. Local GeoJSON files are read from the OS filesystem
// unless WithFs is given.
func New(cfg Config, log *logger.Logger, opts ...Option) *Source {
	cfg = cfg.withDefaults()

	s := &Source{
		cfg:    cfg,
		client: NewClient(&http.Client{Timeout: cfg.RequestTimeout}, Name, "fieldwatch"),
		fs:     afero.NewOsFs(),
		log:    log.WithComponent(Name),
		now:    time.Now,
		cache:  expirable.NewLRU[string, []indexcsv.Row](csvCacheSize, nil, cfg.CacheTTL),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name implements datasource.ParcelDataSource.
func (s *Source) Name() string { return Name }

// LatestDate returns the most recent acquisition date reported by the
// processing server, or "" when none was seen yet.
func (s *Source) LatestDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestDate
}

func (s *Source) setLatestDate(date string) {
	s.mu.Lock()
	s.latestDate = date
	s.mu.Unlock()
}

// GetParcelInfo implements datasource.ParcelDataSource. The local file
// parcela_<id>.geojson is preferred, then the WFS parcel layer.
func (s *Source) GetParcelInfo(ctx context.Context, parcelID string) (*models.Parcel, error) {
	if parcel := s.localParcel(parcelID); parcel != nil {
		return parcel, nil
	}

	parcel, err := s.wfsParcel(ctx, parcelID)
	if err != nil {
		s.log.Warn("WFS parcel lookup failed", map[string]interface{}{
			"parcel_id": parcelID,
			"error":     err.Error(),
		})
		return nil, nil
	}
	return parcel, nil
}

func (s *Source) localParcel(parcelID string) *models.Parcel {
	name := filepath.Join(s.cfg.DataDir, "parcela_"+models.SafeID(parcelID)+".geojson")
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil
	}

	var fc models.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil || len(fc.Features) == 0 {
		s.log.Warn("Ignoring unreadable local parcel file", map[string]interface{}{"file": name})
		return nil
	}

	f := fc.Features[0]
	parcel := &models.Parcel{
		ParcelID:     parcelID,
		Municipality: stringProp(f.Properties, "municipality"),
		Geometry:     f.Geometry,
	}
	if parcel.Municipality == "" {
		parcel.Municipality = "N/A"
	}
	if area, ok := numberProp(f.Properties, "area_ha"); ok && area != 0 {
		parcel.AreaHa = &area
	}
	return parcel
}

func (s *Source) wfsParcel(ctx context.Context, parcelID string) (*models.Parcel, error) {
	params := url.Values{
		"service":      {"WFS"},
		"version":      {"1.0.0"},
		"request":      {"GetFeature"},
		"typeName":     {s.cfg.Workspace + ":" + s.cfg.ParcelLayer},
		"outputFormat": {"application/json"},
		"srsName":      {"EPSG:4326"},
		"maxFeatures":  {"1"},
		"CQL_FILTER":   {parcelFilter(parcelID, s.cfg.KatOpstina)},
	}

	var fc models.FeatureCollection
	if err := s.client.GetJSON(ctx, s.cfg.owsURL()+"?"+params.Encode(), &fc); err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	parcel := &models.Parcel{
		ParcelID:     parcelID,
		Municipality: stringProp(f.Properties, "opstina__1"),
		Geometry:     f.Geometry,
	}
	if parcel.Municipality == "" {
		parcel.Municipality = stringProp(f.Properties, "opstina_im")
	}
	if parcel.Municipality == "" {
		parcel.Municipality = "N/A"
	}
	if m2, ok := numberProp(f.Properties, "povrsina"); ok && m2 != 0 {
		ha := squareMetersToHectares(m2)
		parcel.AreaHa = &ha
	}
	return parcel, nil
}

// parcelFilter builds the CQL filter selecting a parcel number within a
// cadastral municipality. Single quotes are doubled.
func parcelFilter(parcelID, katOpstina string) string {
	quote := func(v string) string { return strings.ReplaceAll(v, "'", "''") }
	return fmt.Sprintf("brparcele='%s' AND kat_opst_1 ILIKE '%s'", quote(parcelID), quote(katOpstina))
}

// squareMetersToHectares converts and rounds to two decimals.
func squareMetersToHectares(m2 float64) float64 {
	return math.Round(m2/100) / 100
}

// GetLatestIndexResults implements datasource.ParcelDataSource.
func (s *Source) GetLatestIndexResults(ctx context.Context, parcelID string) ([]models.Measurement, error) {
	var all []models.Measurement
	for _, ms := range s.fetchAll(ctx, parcelID) {
		all = append(all, ms...)
	}
	return datasource.LatestPerIndex(all), nil
}

// GetTimeSeriesData implements datasource.ParcelDataSource.
func (s *Source) GetTimeSeriesData(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error) {
	return datasource.TimeSeries(s.measurements(ctx, parcelID, indexType), s.now(), daysBack), nil
}

// GetAllIndexResults implements datasource.ParcelDataSource.
func (s *Source) GetAllIndexResults(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error) {
	all := []models.Measurement{}
	for _, ms := range s.fetchAll(ctx, parcelID) {
		all = append(all, ms...)
	}
	return datasource.Limit(datasource.SortDescending(all), limit), nil
}

// fetchAll loads the measurements of every index concurrently. A failing
// index yields an empty slice without affecting the others.
func (s *Source) fetchAll(ctx context.Context, parcelID string) [][]models.Measurement {
	results := make([][]models.Measurement, len(models.AllIndexTypes))

	var g errgroup.Group
	for i, indexType := range models.AllIndexTypes {
		i, indexType := i, indexType
		g.Go(func() error {
			results[i] = s.measurements(ctx, parcelID, indexType)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// measurements converts the cached CSV rows of one index into records.
func (s *Source) measurements(ctx context.Context, parcelID string, indexType models.IndexType) []models.Measurement {
	rows := s.fetchRows(ctx, parcelID, indexType)
	out := make([]models.Measurement, 0, len(rows))
	for _, row := range rows {
		if m := indexcsv.ToRecord(row, parcelID, indexType); m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// fetchRows returns the parsed CSV rows of one index, from the cache when
// fresh. Concurrent requests for the same key share one download, which is
// bound by RequestTimeout rather than by any single caller's context. A
// caller whose context ends stops waiting without cancelling the others.
// Failures are logged, not cached, and yield nil.
func (s *Source) fetchRows(ctx context.Context, parcelID string, indexType models.IndexType) []indexcsv.Row {
	key := parcelID + "_" + string(indexType)
	if rows, ok := s.cache.Get(key); ok {
		return rows
	}

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		if rows, ok := s.cache.Get(key); ok {
			return rows, nil
		}

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()

		rows, err := s.downloadCSV(dctx, parcelID, indexType)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, rows)
		return rows, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.log.Debug("Stopped waiting for index CSV", map[string]interface{}{
			"parcel_id":  parcelID,
			"index_type": indexType,
			"error":      ctx.Err().Error(),
		})
		return nil
	}

	if res.Err != nil {
		s.log.Error("Failed to load index CSV", res.Err, map[string]interface{}{
			"parcel_id":  parcelID,
			"index_type": indexType,
		})
		return nil
	}

	rows, _ := res.Val.([]indexcsv.Row)
	return rows
}

func (s *Source) downloadCSV(ctx context.Context, parcelID string, indexType models.IndexType) ([]indexcsv.Row, error) {
	endpoint, ok := csvEndpoints[indexType]
	if !ok {
		return nil, fmt.Errorf("no csv endpoint for index %s", indexType)
	}

	params := url.Values{
		"parcel":      {parcelID},
		"days":        {strconv.Itoa(s.cfg.CSVDays)},
		"cloud":       {strconv.Itoa(s.cfg.CSVCloud)},
		"layer":       {s.cfg.ParcelLayer},
		"kat_opstina": {s.cfg.KatOpstina},
	}

	var payload csvPayload
	if err := s.client.GetJSON(ctx, s.cfg.ParcelServerURL+endpoint+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if !payload.OK || strings.TrimSpace(payload.CSV) == "" {
		return nil, fmt.Errorf("%w for %s", errEmptyPayload, indexType)
	}

	if m := latestDatePattern.FindStringSubmatch(payload.Stdout); m != nil {
		s.setLatestDate(m[1])
	}

	rows := indexcsv.Parse(payload.CSV)
	s.log.Debug("Index CSV loaded", map[string]interface{}{
		"parcel_id":  parcelID,
		"index_type": indexType,
		"rows":       len(rows),
	})
	return rows, nil
}

// HealthCheck implements datasource.ParcelDataSource with a WFS
// GetCapabilities request.
func (s *Source) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	capabilities := s.cfg.owsURL() + "?service=WFS&version=1.0.0&request=GetCapabilities"
	if err := s.client.Ping(ctx, capabilities); err != nil {
		s.log.Warn("GeoServer health check failed", map[string]interface{}{
			"error":   err.Error(),
			"breaker": s.client.State(),
		})
		return false
	}
	return true
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// numberProp reads a numeric property that may be encoded as a JSON number
// or a numeric string.
func numberProp(props map[string]interface{}, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
