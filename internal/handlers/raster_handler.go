package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// RasterHandler triggers and reports background raster refreshes.
type RasterHandler struct {
	service services.DashboardService
}

// NewRasterHandler creates a new RasterHandler instance.
func NewRasterHandler(service services.DashboardService) *RasterHandler {
	return &RasterHandler{service: service}
}

// RefreshResponse reports whether a refresh was started.
type RefreshResponse struct {
	Started bool                  `json:"started"`
	Status  services.RasterStatus `json:"status"`
}

// Refresh handles POST /api/v1/rasters/refresh. The refresh runs in the
// background; the response is 202 whether it was started now or is
// already running.
func (h *RasterHandler) Refresh(c *gin.Context) {
	var req ParcelRequest
	if !bindQuery(c, &req) {
		return
	}

	status, started, err := h.service.RefreshRasters(req.ParcelID)
	if err != nil {
		handleServiceError(c, err, "Failed to start raster refresh")
		return
	}

	c.JSON(http.StatusAccepted, RefreshResponse{Started: started, Status: status})
}

// Status handles GET /api/v1/rasters/status.
func (h *RasterHandler) Status(c *gin.Context) {
	var req ParcelRequest
	if !bindQuery(c, &req) {
		return
	}

	c.JSON(http.StatusOK, h.service.RasterStatus(req.ParcelID))
}
