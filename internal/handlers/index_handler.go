package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// IndexHandler serves index statistics, series and exports.
type IndexHandler struct {
	service services.DashboardService
}

// NewIndexHandler creates a new IndexHandler instance.
func NewIndexHandler(service services.DashboardService) *IndexHandler {
	return &IndexHandler{service: service}
}

// IndexRequest selects a parcel and an index.
type IndexRequest struct {
	ParcelID  string `form:"parcel_id" binding:"omitempty,parcel_id"`
	IndexType string `form:"index_type" binding:"required,oneof=NDVI NDMI NDRE"`
}

// TimeSeriesRequest adds the time window in days.
type TimeSeriesRequest struct {
	IndexRequest
	Days int `form:"days" binding:"omitempty,min=1,max=3650"`
}

// MeasurementsRequest represents the query parameters of the measurement table.
type MeasurementsRequest struct {
	ParcelID string `form:"parcel_id" binding:"omitempty,parcel_id"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// MeasurementsResponse wraps a list of measurements.
type MeasurementsResponse struct {
	Measurements []models.Measurement `json:"measurements"`
	Count        int                  `json:"count"`
}

func measurementsResponse(ms []models.Measurement) MeasurementsResponse {
	return MeasurementsResponse{Measurements: ms, Count: len(ms)}
}

// View handles GET /api/v1/indices/view, the data needed when the user
// switches the selected index.
func (h *IndexHandler) View(c *gin.Context) {
	var req IndexRequest
	if !bindQuery(c, &req) {
		return
	}

	view, err := h.service.LoadIndex(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE))
	if err != nil {
		handleServiceError(c, err, "Failed to load index data")
		return
	}

	c.JSON(http.StatusOK, view)
}

// Latest handles GET /api/v1/indices/latest.
func (h *IndexHandler) Latest(c *gin.Context) {
	var req ParcelRequest
	if !bindQuery(c, &req) {
		return
	}

	latest, err := h.service.LatestResults(c.Request.Context(), req.ParcelID)
	if err != nil {
		handleServiceError(c, err, "Failed to load latest results")
		return
	}

	c.JSON(http.StatusOK, measurementsResponse(latest))
}

// TimeSeries handles GET /api/v1/indices/timeseries.
func (h *IndexHandler) TimeSeries(c *gin.Context) {
	var req TimeSeriesRequest
	if !bindQuery(c, &req) {
		return
	}

	series, err := h.service.TimeSeries(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE), req.Days)
	if err != nil {
		handleServiceError(c, err, "Failed to load time series")
		return
	}

	c.JSON(http.StatusOK, measurementsResponse(series))
}

// Measurements handles GET /api/v1/indices/measurements, newest first.
func (h *IndexHandler) Measurements(c *gin.Context) {
	var req MeasurementsRequest
	if !bindQuery(c, &req) {
		return
	}

	ms, err := h.service.Measurements(c.Request.Context(), req.ParcelID, req.Limit)
	if err != nil {
		handleServiceError(c, err, "Failed to load measurements")
		return
	}

	c.JSON(http.StatusOK, measurementsResponse(ms))
}

// Export handles GET /api/v1/indices/export and downloads the time series
// as a UTF-8 CSV file.
func (h *IndexHandler) Export(c *gin.Context) {
	var req IndexRequest
	if !bindQuery(c, &req) {
		return
	}

	export, err := h.service.ExportTimeSeries(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE))
	if err != nil {
		handleServiceError(c, err, "Failed to export time series")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", export.Content)
}
