package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// ZoneHandler serves zone statistics and polygons.
type ZoneHandler struct {
	service services.DashboardService
}

// NewZoneHandler creates a new ZoneHandler instance.
func NewZoneHandler(service services.DashboardService) *ZoneHandler {
	return &ZoneHandler{service: service}
}

// ZoneRequest selects a parcel and an index. Only NDRE has zones; the
// index defaults to it.
type ZoneRequest struct {
	ParcelID  string `form:"parcel_id" binding:"omitempty,parcel_id"`
	IndexType string `form:"index_type" binding:"omitempty,oneof=NDVI NDMI NDRE"`
}

// ZonesResponse wraps the zone classifications.
type ZonesResponse struct {
	Zones []models.ZoneClassification `json:"zones"`
}

// Zones handles GET /api/v1/zones.
func (h *ZoneHandler) Zones(c *gin.Context) {
	var req ZoneRequest
	if !bindQuery(c, &req) {
		return
	}

	zones, err := h.service.Zones(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE))
	if err != nil {
		handleServiceError(c, err, "Failed to load zones")
		return
	}

	c.JSON(http.StatusOK, ZonesResponse{Zones: zones})
}

// Geometries handles GET /api/v1/zones/geometries.
func (h *ZoneHandler) Geometries(c *gin.Context) {
	var req ZoneRequest
	if !bindQuery(c, &req) {
		return
	}

	view, err := h.service.ZoneGeometries(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE))
	if err != nil {
		handleServiceError(c, err, "Failed to load zone geometries")
		return
	}

	c.JSON(http.StatusOK, view)
}
