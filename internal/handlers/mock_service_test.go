package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// MockDashboardService is a mock implementation of DashboardService for testing
type MockDashboardService struct {
	mock.Mock
}

var _ services.DashboardService = (*MockDashboardService)(nil)

func (m *MockDashboardService) Backend() string { return "mock" }

func (m *MockDashboardService) LoadDashboard(ctx context.Context, parcelID string, indexType models.IndexType) (*services.Dashboard, error) {
	args := m.Called(ctx, parcelID, indexType)
	d, _ := args.Get(0).(*services.Dashboard)
	return d, args.Error(1)
}

func (m *MockDashboardService) LoadIndex(ctx context.Context, parcelID string, indexType models.IndexType) (*services.IndexView, error) {
	args := m.Called(ctx, parcelID, indexType)
	v, _ := args.Get(0).(*services.IndexView)
	return v, args.Error(1)
}

func (m *MockDashboardService) GetParcel(ctx context.Context, parcelID string) (*services.ParcelView, error) {
	args := m.Called(ctx, parcelID)
	v, _ := args.Get(0).(*services.ParcelView)
	return v, args.Error(1)
}

func (m *MockDashboardService) LatestResults(ctx context.Context, parcelID string) ([]models.Measurement, error) {
	args := m.Called(ctx, parcelID)
	ms, _ := args.Get(0).([]models.Measurement)
	return ms, args.Error(1)
}

func (m *MockDashboardService) TimeSeries(ctx context.Context, parcelID string, indexType models.IndexType, daysBack int) ([]models.Measurement, error) {
	args := m.Called(ctx, parcelID, indexType, daysBack)
	ms, _ := args.Get(0).([]models.Measurement)
	return ms, args.Error(1)
}

func (m *MockDashboardService) Measurements(ctx context.Context, parcelID string, limit int) ([]models.Measurement, error) {
	args := m.Called(ctx, parcelID, limit)
	ms, _ := args.Get(0).([]models.Measurement)
	return ms, args.Error(1)
}

func (m *MockDashboardService) Zones(ctx context.Context, parcelID string, indexType models.IndexType) ([]models.ZoneClassification, error) {
	args := m.Called(ctx, parcelID, indexType)
	zs, _ := args.Get(0).([]models.ZoneClassification)
	return zs, args.Error(1)
}

func (m *MockDashboardService) ZoneGeometries(ctx context.Context, parcelID string, indexType models.IndexType) (*services.ZoneGeometriesView, error) {
	args := m.Called(ctx, parcelID, indexType)
	v, _ := args.Get(0).(*services.ZoneGeometriesView)
	return v, args.Error(1)
}

func (m *MockDashboardService) ExportTimeSeries(ctx context.Context, parcelID string, indexType models.IndexType) (*services.Export, error) {
	args := m.Called(ctx, parcelID, indexType)
	e, _ := args.Get(0).(*services.Export)
	return e, args.Error(1)
}

func (m *MockDashboardService) RefreshRasters(parcelID string) (services.RasterStatus, bool, error) {
	args := m.Called(parcelID)
	return args.Get(0).(services.RasterStatus), args.Bool(1), args.Error(2)
}

func (m *MockDashboardService) RasterStatus(parcelID string) services.RasterStatus {
	return m.Called(parcelID).Get(0).(services.RasterStatus)
}

func (m *MockDashboardService) SampleValue(ctx context.Context, indexType models.IndexType, lat, lng float64) (*services.PointValue, error) {
	args := m.Called(ctx, indexType, lat, lng)
	p, _ := args.Get(0).(*services.PointValue)
	return p, args.Error(1)
}

func (m *MockDashboardService) Metadata(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockDashboardService) Healthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockDashboardService) Wait(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
