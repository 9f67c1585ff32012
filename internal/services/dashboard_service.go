package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/fieldwatch/internal/config"
	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/geometry"
	"github.com/stwalsh4118/fieldwatch/internal/indexcsv"
	"github.com/stwalsh4118/fieldwatch/internal/logger"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Dashboard defaults used when the configuration leaves a value unset.
const (
	DefaultTimeRangeDays    = 5 * 365
	DefaultMeasurementLimit = 50
	DefaultMapZoom          = 16
	DefaultHealthTimeout    = 8 * time.Second
)

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrParcelNotFound     = errors.New("parcel not found")
	ErrNoData             = errors.New("no data available")
	ErrUnsupported        = errors.New("operation not supported by the data source")
	ErrMetadataNotFound   = errors.New("metadata key not found")
)

// Options tunes the dashboard service.
type Options struct {
	DefaultParcel    string
	TimeRangeDays    int
	MeasurementLimit int
	RefreshOnLoad    bool
	MapCenterLat     float64
	MapCenterLng     float64
	MapZoom          int
	HealthTimeout    time.Duration
}

// OptionsFromConfig maps the dashboard configuration onto service options.
func OptionsFromConfig(cfg config.DashboardConfig) Options {
	return Options{
		DefaultParcel:    cfg.DefaultParcel,
		TimeRangeDays:    cfg.TimeRangeDays,
		MeasurementLimit: cfg.MeasurementLimit,
		RefreshOnLoad:    cfg.RefreshOnLoad,
		MapCenterLat:     cfg.MapCenterLat,
		MapCenterLng:     cfg.MapCenterLng,
		MapZoom:          cfg.MapZoom,
		HealthTimeout:    cfg.HealthTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.TimeRangeDays <= 0 {
		o.TimeRangeDays = DefaultTimeRangeDays
	}
	if o.MeasurementLimit <= 0 {
		o.MeasurementLimit = DefaultMeasurementLimit
	}
	if o.MapZoom <= 0 {
		o.MapZoom = DefaultMapZoom
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = DefaultHealthTimeout
	}
	return o
}

// MapView tells the map widget where to look. Bounds is nil when the
// parcel has no usable geometry and the default center is shown instead.
type MapView struct {
	CenterLat float64        `json:"center_lat"`
	CenterLng float64        `json:"center_lng"`
	Zoom      int            `json:"zoom"`
	Bounds    *geometry.BBox `json:"bounds"`
}

// ParcelView is a parcel with its normalized outline.
type ParcelView struct {
	Parcel  *models.Parcel  `json:"parcel"`
	Feature *models.Feature `json:"feature"`
	MapView MapView         `json:"map_view"`
}

// ZoneGeometriesView holds the zone polygons of a parcel. Synthesized is
// true when they were derived from the parcel outline because the data
// source had none.
type ZoneGeometriesView struct {
	Geometries  []models.ZoneGeometry `json:"geometries"`
	Synthesized bool                  `json:"synthesized"`
}

// IndexView is everything shown for the selected index.
type IndexView struct {
	IndexType      models.IndexType            `json:"index_type"`
	Current        *models.Measurement         `json:"current"`
	TimeSeries     []models.Measurement        `json:"time_series"`
	Zones          []models.ZoneClassification `json:"zones"`
	ZoneGeometries ZoneGeometriesView          `json:"zone_geometries"`
}

// Dashboard is the full initial load of the dashboard page.
type Dashboard struct {
	ParcelID     string               `json:"parcel_id"`
	Backend      string               `json:"backend"`
	Parcel       ParcelView           `json:"parcel"`
	Latest       []models.Measurement `json:"latest"`
	LastUpdate   models.Date          `json:"last_update"`
	Index        IndexView            `json:"index"`
	Measurements []models.Measurement `json:"measurements"`
	Raster       RasterStatus         `json:"raster"`
}

// Export is a CSV download.
type Export struct {
	Filename string
	Content  []byte
}

// DashboardService defines the dashboard operations. Empty parcel ids
// resolve to the configured default parcel.
type DashboardService interface {
	// Backend returns the name of the data source in use.
	Backend() string

	// LoadDashboard performs the initial page load: parcel and map view,
	// latest statistics, the selected index view and the measurement
	// table. A background raster refresh is scheduled afterwards when
	// enabled. Returns datasource.ErrNotInitialized for an unconfigured
	// data source.
	LoadDashboard(ctx context.Context, parcelID string, indexType models.IndexType) (*Dashboard, error)

	// LoadIndex returns the view for switching to another index.
	LoadIndex(ctx context.Context, parcelID string, indexType models.IndexType) (*IndexView, error)

	// GetParcel returns the parcel and its map view.
	// Returns ErrParcelNotFound when the data source does not know it.
	GetParcel(ctx context.Context, parcelID string) (*ParcelView, error)

	LatestResults(ctx context.Context, parcelID string) ([]models.Measurement, error)
	TimeSeries(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error)
	Measurements(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error)
	Zones(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error)
	ZoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType) (*ZoneGeometriesView, error)

	// ExportTimeSeries renders the configured time window as CSV.
	// Returns ErrNoData when the series is empty.
	ExportTimeSeries(ctx context.Context, parcelID string, indexType models.IndexType) (*Export, error)

	// RefreshRasters starts a background raster refresh. started is false
	// when one is already running for the parcel.
	// Returns ErrUnsupported when the data source cannot refresh rasters.
	RefreshRasters(parcelID string) (status RasterStatus, started bool, err error)

	// RasterStatus returns the last known refresh status of a parcel.
	RasterStatus(parcelID string) RasterStatus

	// SampleValue reads the index value at a map coordinate.
	// Returns ErrInvalidCoordinates for out-of-range coordinates and
	// ErrUnsupported when the data source cannot sample rasters.
	SampleValue(ctx context.Context, indexType models.IndexType, lat, lng float64) (*PointValue, error)

	// Metadata looks up a metadata value.
	Metadata(ctx context.Context, key string) (string, error)

	// Healthy probes the data source within the health timeout.
	Healthy(ctx context.Context) bool

	// Wait blocks until background refreshes finish or ctx is done.
	Wait(ctx context.Context) error
}

// dashboardService is the concrete implementation of DashboardService.
type dashboardService struct {
	ds      datasource.ParcelDataSource
	opts    Options
	log     *logger.Logger
	now     func() time.Time
	rasters *rasterTracker
	wg      sync.WaitGroup
}

// NewDashboardService creates a new instance of DashboardService.
func NewDashboardService(ds datasource.ParcelDataSource, opts Options, log *logger.Logger) DashboardService {
	return &dashboardService{
		ds:      ds,
		opts:    opts.withDefaults(),
		log:     log,
		now:     time.Now,
		rasters: newRasterTracker(),
	}
}

func (s *dashboardService) Backend() string {
	return s.ds.Name()
}

func (s *dashboardService) parcelID(id string) string {
	if id == "" {
		return s.opts.DefaultParcel
	}
	return id
}

func (s *dashboardService) LoadDashboard(ctx context.Context, parcelID string, indexType models.IndexType) (*Dashboard, error) {
	parcelID = s.parcelID(parcelID)
	s.log.Info("Loading dashboard", map[string]interface{}{
		"parcel_id":  parcelID,
		"index_type": indexType,
	})

	parcel, err := s.ds.GetParcelInfo(ctx, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel == nil {
		s.log.Warn("Parcel not found, continuing without geometry", map[string]interface{}{
			"parcel_id": parcelID,
		})
	}

	latest, err := s.ds.GetLatestIndexResults(ctx, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest results: %w", err)
	}

	view, err := s.indexView(ctx, parcelID, indexType, parcel, latest)
	if err != nil {
		return nil, err
	}

	measurements, err := s.ds.GetAllIndexResults(ctx, parcelID, s.opts.MeasurementLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load measurements: %w", err)
	}

	dashboard := &Dashboard{
		ParcelID:     parcelID,
		Backend:      s.ds.Name(),
		Parcel:       s.parcelView(parcel),
		Latest:       nonNil(latest),
		LastUpdate:   lastUpdate(latest),
		Index:        *view,
		Measurements: nonNil(measurements),
	}

	// The refresh starts only after the read side has completed.
	if s.opts.RefreshOnLoad {
		status, _, err := s.RefreshRasters(parcelID)
		if err != nil && !errors.Is(err, ErrUnsupported) {
			s.log.Warn("Failed to schedule raster refresh", map[string]interface{}{
				"parcel_id": parcelID,
				"error":     err.Error(),
			})
		}
		dashboard.Raster = status
	} else {
		dashboard.Raster = s.RasterStatus(parcelID)
	}

	s.log.Info("Dashboard loaded", map[string]interface{}{
		"parcel_id":    parcelID,
		"index_type":   indexType,
		"latest":       len(dashboard.Latest),
		"series":       len(view.TimeSeries),
		"measurements": len(dashboard.Measurements),
	})

	return dashboard, nil
}

func (s *dashboardService) LoadIndex(ctx context.Context, parcelID string, indexType models.IndexType) (*IndexView, error) {
	parcelID = s.parcelID(parcelID)

	latest, err := s.ds.GetLatestIndexResults(ctx, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest results: %w", err)
	}

	var parcel *models.Parcel
	if indexType == models.IndexNDRE {
		if parcel, err = s.ds.GetParcelInfo(ctx, parcelID); err != nil {
			return nil, fmt.Errorf("failed to load parcel: %w", err)
		}
	}

	return s.indexView(ctx, parcelID, indexType, parcel, latest)
}

// indexView assembles current statistics, the time series and, for NDRE,
// the zones. parcel may be nil.
func (s *dashboardService) indexView(ctx context.Context, parcelID string, indexType models.IndexType, parcel *models.Parcel, latest []models.Measurement) (*IndexView, error) {
	view := &IndexView{
		IndexType:      indexType,
		Current:        currentFor(latest, indexType),
		Zones:          []models.ZoneClassification{},
		ZoneGeometries: ZoneGeometriesView{Geometries: []models.ZoneGeometry{}},
	}

	series, err := s.ds.GetTimeSeriesData(ctx, parcelID, indexType, s.opts.TimeRangeDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load time series: %w", err)
	}
	view.TimeSeries = nonNil(series)

	if indexType != models.IndexNDRE {
		return view, nil
	}

	zones, err := s.ds.GetZoneClassifications(ctx, parcelID, indexType)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone classifications: %w", err)
	}
	view.Zones = nonNilZones(zones)

	geoms, err := s.zoneGeometries(ctx, parcelID, indexType, parcel)
	if err != nil {
		return nil, err
	}
	view.ZoneGeometries = *geoms

	return view, nil
}

func (s *dashboardService) GetParcel(ctx context.Context, parcelID string) (*ParcelView, error) {
	parcelID = s.parcelID(parcelID)

	parcel, err := s.ds.GetParcelInfo(ctx, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel == nil {
		s.log.Debug("Parcel not found", map[string]interface{}{"parcel_id": parcelID})
		return nil, ErrParcelNotFound
	}

	view := s.parcelView(parcel)
	return &view, nil
}

func (s *dashboardService) parcelView(parcel *models.Parcel) ParcelView {
	view := ParcelView{
		Parcel: parcel,
		MapView: MapView{
			CenterLat: s.opts.MapCenterLat,
			CenterLng: s.opts.MapCenterLng,
			Zoom:      s.opts.MapZoom,
		},
	}
	if parcel == nil {
		return view
	}

	view.Feature = geometry.Normalize(parcel.Geometry)
	if box, ok := geometry.Bounds(view.Feature); ok {
		view.MapView.CenterLat, view.MapView.CenterLng = box.Center()
		view.MapView.Bounds = &box
	}
	return view
}

func (s *dashboardService) LatestResults(ctx context.Context, parcelID string) ([]models.Measurement, error) {
	latest, err := s.ds.GetLatestIndexResults(ctx, s.parcelID(parcelID))
	if err != nil {
		return nil, fmt.Errorf("failed to load latest results: %w", err)
	}
	return nonNil(latest), nil
}

func (s *dashboardService) TimeSeries(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error) {
	if daysBack <= 0 {
		daysBack = s.opts.TimeRangeDays
	}
	series, err := s.ds.GetTimeSeriesData(ctx, s.parcelID(parcelID), indexType, daysBack)
	if err != nil {
		return nil, fmt.Errorf("failed to load time series: %w", err)
	}
	return nonNil(series), nil
}

func (s *dashboardService) Measurements(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error) {
	if limit <= 0 {
		limit = s.opts.MeasurementLimit
	}
	ms, err := s.ds.GetAllIndexResults(ctx, s.parcelID(parcelID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load measurements: %w", err)
	}
	return nonNil(ms), nil
}

func (s *dashboardService) Zones(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error) {
	zones, err := s.ds.GetZoneClassifications(ctx, s.parcelID(parcelID), indexType)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone classifications: %w", err)
	}
	return nonNilZones(zones), nil
}

func (s *dashboardService) ZoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType) (*ZoneGeometriesView, error) {
	parcelID = s.parcelID(parcelID)

	var parcel *models.Parcel
	if indexType == models.IndexNDRE {
		var err error
		if parcel, err = s.ds.GetParcelInfo(ctx, parcelID); err != nil {
			return nil, fmt.Errorf("failed to load parcel: %w", err)
		}
	}
	return s.zoneGeometries(ctx, parcelID, indexType, parcel)
}

// zoneGeometries returns sourced zone polygons, or bands synthesized from
// the parcel outline when the source has none. Zones exist for NDRE only.
func (s *dashboardService) zoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType, parcel *models.Parcel) (*ZoneGeometriesView, error) {
	view := &ZoneGeometriesView{Geometries: []models.ZoneGeometry{}}
	if indexType != models.IndexNDRE {
		return view, nil
	}

	sourced, err := s.ds.GetZoneGeometries(ctx, parcelID, indexType)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone geometries: %w", err)
	}
	if len(sourced) > 0 {
		view.Geometries = sourced
		return view, nil
	}

	if parcel == nil {
		return view, nil
	}
	view.Geometries = geometry.SynthesizeZones(parcel.Geometry)
	view.Synthesized = len(view.Geometries) > 0
	if view.Synthesized {
		s.log.Debug("Using synthesized zones", map[string]interface{}{"parcel_id": parcelID})
	}
	return view, nil
}

func (s *dashboardService) ExportTimeSeries(ctx context.Context, parcelID string, indexType models.IndexType) (*Export, error) {
	parcelID = s.parcelID(parcelID)

	series, err := s.ds.GetTimeSeriesData(ctx, parcelID, indexType, s.opts.TimeRangeDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load time series: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no %s time series for parcel %s", ErrNoData, indexType, parcelID)
	}

	var buf bytes.Buffer
	if err := indexcsv.WriteExport(&buf, series); err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	return &Export{
		Filename: indexcsv.ExportFilename(parcelID, indexType),
		Content:  buf.Bytes(),
	}, nil
}

func (s *dashboardService) SampleValue(ctx context.Context, indexType models.IndexType, lat, lng float64) (*PointValue, error) {
	if lat < MinLatitude || lat > MaxLatitude {
		return nil, fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return nil, fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}

	sampler, ok := s.ds.(datasource.PointSampler)
	if !ok {
		return nil, ErrUnsupported
	}

	value, err := sampler.SampleValue(ctx, indexType, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("failed to sample value: %w", err)
	}

	point := &PointValue{
		IndexType: indexType,
		Lat:       lat,
		Lng:       lng,
		Value:     value,
	}
	if value != nil {
		point.Interpretation = Interpret(indexType, *value)
	}
	return point, nil
}

func (s *dashboardService) Metadata(ctx context.Context, key string) (string, error) {
	source, ok := s.ds.(datasource.MetadataSource)
	if !ok {
		return "", ErrUnsupported
	}

	value, found, err := source.GetMetadata(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load metadata: %w", err)
	}
	if !found {
		return "", ErrMetadataNotFound
	}
	return value, nil
}

func (s *dashboardService) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HealthTimeout)
	defer cancel()

	type result struct{ ok bool }
	done := make(chan result, 1)
	go func() {
		done <- result{ok: s.ds.HealthCheck(ctx)}
	}()

	select {
	case r := <-done:
		return r.ok
	case <-ctx.Done():
		s.log.Warn("Data source health check timed out", map[string]interface{}{
			"backend": s.ds.Name(),
			"timeout": s.opts.HealthTimeout.String(),
		})
		return false
	}
}

func (s *dashboardService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func currentFor(latest []models.Measurement, indexType models.IndexType) *models.Measurement {
	for i := range latest {
		if latest[i].IndexType == indexType {
			m := latest[i]
			return &m
		}
	}
	return nil
}

func lastUpdate(latest []models.Measurement) models.Date {
	var last models.Date
	for _, m := range latest {
		if m.AcquisitionDate.After(last.Time) {
			last = m.AcquisitionDate
		}
	}
	return last
}

func nonNil(ms []models.Measurement) []models.Measurement {
	if ms == nil {
		return []models.Measurement{}
	}
	return ms
}

func nonNilZones(zs []models.ZoneClassification) []models.ZoneClassification {
	if zs == nil {
		return []models.ZoneClassification{}
	}
	return zs
}
