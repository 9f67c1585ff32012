package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/middleware"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// ParcelHandler handles parcel-related HTTP requests.
type ParcelHandler struct {
	service services.DashboardService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(service services.DashboardService) *ParcelHandler {
	return &ParcelHandler{service: service}
}

// ParcelRequest selects a parcel. An empty id means the default parcel.
type ParcelRequest struct {
	ParcelID string `form:"parcel_id" binding:"omitempty,parcel_id"`
}

// ValueAtPointRequest represents the query parameters for the value-at-point endpoint.
type ValueAtPointRequest struct {
	IndexType string   `form:"index_type" binding:"required,oneof=NDVI NDMI NDRE"`
	Lat       *float64 `form:"lat" binding:"required,latitude"`
	Lng       *float64 `form:"lng" binding:"required,longitude"`
}

// Parcel handles GET /api/v1/parcels. It returns the parcel record, its
// normalized outline and the map view.
func (h *ParcelHandler) Parcel(c *gin.Context) {
	var req ParcelRequest
	if !bindQuery(c, &req) {
		return
	}

	view, err := h.service.GetParcel(c.Request.Context(), req.ParcelID)
	if err != nil {
		handleServiceError(c, err, "Failed to load parcel")
		return
	}

	c.JSON(http.StatusOK, view)
}

// ValueAtPoint handles GET /api/v1/parcels/value-at-point. It samples the
// index raster at a clicked map position.
func (h *ParcelHandler) ValueAtPoint(c *gin.Context) {
	var req ValueAtPointRequest
	if !bindQuery(c, &req) {
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Sampling index value", map[string]interface{}{
			"index_type": req.IndexType,
			"lat":        *req.Lat,
			"lng":        *req.Lng,
		})
	}

	point, err := h.service.SampleValue(c.Request.Context(), indexType(req.IndexType, ""), *req.Lat, *req.Lng)
	if err != nil {
		handleServiceError(c, err, "Failed to sample index value")
		return
	}

	c.JSON(http.StatusOK, point)
}
