package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	apierrors "github.com/stwalsh4118/fieldwatch/internal/errors"
	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// setupRouter mounts every route on a fresh engine backed by the mock.
func setupRouter(svc *MockDashboardService) *gin.Engine {
	router := gin.New()
	Register(router, svc, "test")
	return router
}

func doRequest(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorResponse {
	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func withParcel(path, parcelID string, extra url.Values) string {
	q := url.Values{}
	if parcelID != "" {
		q.Set("parcel_id", parcelID)
	}
	for k, v := range extra {
		q[k] = v
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func TestHealth(t *testing.T) {
	router := setupRouter(new(MockDashboardService))

	w := doRequest(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantStatus int
		wantBody   ReadyResponse
	}{
		{
			name:       "data source reachable",
			healthy:    true,
			wantStatus: http.StatusOK,
			wantBody:   ReadyResponse{Status: "ready", Backend: "mock", DataSource: "connected"},
		},
		{
			name:       "data source unreachable",
			healthy:    false,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   ReadyResponse{Status: "not_ready", Backend: "mock", DataSource: "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			svc.On("Healthy", mock.Anything).Return(tt.healthy)

			w := doRequest(setupRouter(svc), http.MethodGet, "/health/ready")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ReadyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestInfo(t *testing.T) {
	handler := &HealthHandler{prober: new(MockDashboardService), startTime: time.Now().Add(-90 * time.Minute), env: "test"}
	router := gin.New()
	router.GET("/api/v1/info", handler.Info)

	w := doRequest(router, http.MethodGet, "/api/v1/info")

	require.Equal(t, http.StatusOK, w.Code)
	var info InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, APIVersion, info.Version)
	assert.Equal(t, "test", info.Environment)
	assert.Equal(t, "mock", info.Backend)
	assert.Equal(t, "1h 30m 0s", info.Uptime)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 0m 5s", formatUptime(5*time.Second))
	assert.Equal(t, "2h 3m 4s", formatUptime(2*time.Hour+3*time.Minute+4*time.Second))
	assert.Equal(t, "1d 1h 0m 0s", formatUptime(25*time.Hour))
}

func TestDashboard(t *testing.T) {
	svc := new(MockDashboardService)
	dash := &services.Dashboard{ParcelID: "1427/2", Backend: "mock", Latest: []models.Measurement{}}
	svc.On("LoadDashboard", mock.Anything, "1427/2", models.IndexNDRE).Return(dash, nil)

	w := doRequest(setupRouter(svc), http.MethodGet, withParcel("/api/v1/dashboard", "1427/2", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "1427/2", got["parcel_id"])
	svc.AssertExpectations(t)
}

func TestDashboard_DefaultsAndIndexSelection(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("LoadDashboard", mock.Anything, "", models.IndexNDMI).Return(&services.Dashboard{}, nil)

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/v1/dashboard?index_type=NDMI")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestDashboard_NotInitialized(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("LoadDashboard", mock.Anything, "", models.IndexNDRE).
		Return(nil, fmt.Errorf("failed to load parcel: %w", datasource.ErrNotInitialized))

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/v1/dashboard")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apierrors.ErrServiceUnavailable, decodeError(t, w).Error.Code)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"bad parcel id", "/api/v1/parcels?parcel_id=abc", "parcel_id"},
		{"slash only", "/api/v1/parcels?parcel_id=1427/", "parcel_id"},
		{"unknown index", "/api/v1/dashboard?index_type=EVI", "index_type"},
		{"missing index", "/api/v1/indices/timeseries?parcel_id=1427/2", "index_type"},
		{"days too large", "/api/v1/indices/timeseries?index_type=NDVI&days=99999", "days"},
		{"limit too small", "/api/v1/indices/measurements?limit=-1", "limit"},
		{"latitude out of range", "/api/v1/parcels/value-at-point?index_type=NDVI&lat=95&lng=21", "lat"},
		{"missing longitude", "/api/v1/parcels/value-at-point?index_type=NDVI&lat=44", "lng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)

			w := doRequest(setupRouter(svc), http.MethodGet, tt.target)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, apierrors.ErrValidation, resp.Error.Code)
			assert.Contains(t, resp.Error.Details, tt.field)
			assert.Empty(t, svc.Calls, "service must not be called on invalid input")
		})
	}
}

func TestDashboard_UnexpectedError(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("LoadDashboard", mock.Anything, "", models.IndexNDRE).Return(nil, errors.New("boom"))

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/v1/dashboard")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierrors.ErrInternalServer, decodeError(t, w).Error.Code)
}

func TestParcel(t *testing.T) {
	svc := new(MockDashboardService)
	view := &services.ParcelView{
		Parcel:  &models.Parcel{ParcelID: "1427/2", Municipality: "Kovin"},
		MapView: services.MapView{CenterLat: 44.8, CenterLng: 21.2, Zoom: 16},
	}
	svc.On("GetParcel", mock.Anything, "1427/2").Return(view, nil)
	svc.On("GetParcel", mock.Anything, "9/9").Return(nil, services.ErrParcelNotFound)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodGet, withParcel("/api/v1/parcels", "1427/2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got services.ParcelView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Kovin", got.Parcel.Municipality)

	w = doRequest(router, http.MethodGet, withParcel("/api/v1/parcels", "9/9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierrors.ErrNotFound, decodeError(t, w).Error.Code)
}

func TestValueAtPoint(t *testing.T) {
	svc := new(MockDashboardService)
	v := 0.42
	point := &services.PointValue{
		IndexType:      models.IndexNDVI,
		Lat:            44.8156,
		Lng:            21.2003,
		Value:          &v,
		Interpretation: services.Interpret(models.IndexNDVI, v),
	}
	svc.On("SampleValue", mock.Anything, models.IndexNDVI, 44.8156, 21.2003).Return(point, nil)

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/v1/parcels/value-at-point?index_type=NDVI&lat=44.8156&lng=21.2003")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"Moderate vegetation"`)
}

func TestValueAtPoint_ZeroCoordinatesAndUnsupported(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SampleValue", mock.Anything, models.IndexNDRE, 0.0, 0.0).Return(nil, services.ErrUnsupported)

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/v1/parcels/value-at-point?index_type=NDRE&lat=0&lng=0")

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, apierrors.ErrNotSupported, decodeError(t, w).Error.Code)
}

func TestIndexEndpoints(t *testing.T) {
	svc := new(MockDashboardService)
	series := []models.Measurement{{ParcelID: "1427/2", IndexType: models.IndexNDVI, Mean: 0.6}}

	svc.On("LatestResults", mock.Anything, "1427/2").Return(series, nil)
	svc.On("TimeSeries", mock.Anything, "1427/2", models.IndexNDVI, 365).Return(series, nil)
	svc.On("Measurements", mock.Anything, "", 0).Return([]models.Measurement{}, nil)
	svc.On("LoadIndex", mock.Anything, "1427/2", models.IndexNDMI).Return(&services.IndexView{IndexType: models.IndexNDMI}, nil)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodGet, withParcel("/api/v1/indices/latest", "1427/2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doRequest(router, http.MethodGet, withParcel("/api/v1/indices/timeseries", "1427/2", url.Values{"index_type": {"NDVI"}, "days": {"365"}}))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/indices/measurements")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"measurements":[],"count":0}`, w.Body.String())

	w = doRequest(router, http.MethodGet, withParcel("/api/v1/indices/view", "1427/2", url.Values{"index_type": {"NDMI"}}))
	require.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}

func TestExport(t *testing.T) {
	svc := new(MockDashboardService)
	export := &services.Export{Filename: "timeseries_1427_2_NDVI_5y.csv", Content: []byte("\ufeffdate,mean\n")}
	svc.On("ExportTimeSeries", mock.Anything, "1427/2", models.IndexNDVI).Return(export, nil)
	svc.On("ExportTimeSeries", mock.Anything, "1427/2", models.IndexNDRE).Return(nil, services.ErrNoData)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodGet, withParcel("/api/v1/indices/export", "1427/2", url.Values{"index_type": {"NDVI"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timeseries_1427_2_NDVI_5y.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, export.Content, w.Body.Bytes())

	w = doRequest(router, http.MethodGet, withParcel("/api/v1/indices/export", "1427/2", url.Values{"index_type": {"NDRE"}}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZones(t *testing.T) {
	svc := new(MockDashboardService)
	zones := []models.ZoneClassification{{ZoneType: models.ZoneRed, Percentage: 12.5, Recommendation: models.ZoneAdvice(models.ZoneRed)}}
	svc.On("Zones", mock.Anything, "", models.IndexNDRE).Return(zones, nil)
	svc.On("ZoneGeometries", mock.Anything, "", models.IndexNDRE).Return(&services.ZoneGeometriesView{
		Geometries:  []models.ZoneGeometry{},
		Synthesized: false,
	}, nil)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/zones")
	require.Equal(t, http.StatusOK, w.Code)
	var got ZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, zones, got.Zones)

	w = doRequest(router, http.MethodGet, "/api/v1/zones/geometries")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"geometries":[],"synthesized":false}`, w.Body.String())
}

func TestRasters(t *testing.T) {
	svc := new(MockDashboardService)
	refreshing := services.RasterStatus{ParcelID: "1427/2", State: services.RasterRefreshing, Errors: []services.LayerError{}}
	svc.On("RefreshRasters", "1427/2").Return(refreshing, true, nil)
	svc.On("RasterStatus", "1427/2").Return(refreshing)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodPost, withParcel("/api/v1/rasters/refresh", "1427/2", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Started)
	assert.Equal(t, services.RasterRefreshing, resp.Status.State)

	w = doRequest(router, http.MethodGet, withParcel("/api/v1/rasters/status", "1427/2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"refreshing"`)
}

func TestRasters_Unsupported(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("RefreshRasters", "").Return(services.RasterStatus{State: services.RasterIdle}, false, services.ErrUnsupported)

	w := doRequest(setupRouter(svc), http.MethodPost, "/api/v1/rasters/refresh")

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMetadata(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Metadata", mock.Anything, "last_processing").Return("2024-06-25", nil)
	svc.On("Metadata", mock.Anything, "missing").Return("", services.ErrMetadataNotFound)

	router := setupRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/metadata/last_processing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"key":"last_processing","value":"2024-06-25"}`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/v1/metadata/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIsParcelID(t *testing.T) {
	assert.True(t, isParcelID("1427"))
	assert.True(t, isParcelID("1427/2"))
	assert.False(t, isParcelID(""))
	assert.False(t, isParcelID("/2"))
	assert.False(t, isParcelID("1427/2/1"))
	assert.False(t, isParcelID("14a7"))
}
