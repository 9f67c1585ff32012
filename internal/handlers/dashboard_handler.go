package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// DashboardHandler serves the initial dashboard load.
type DashboardHandler struct {
	service services.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler instance.
func NewDashboardHandler(service services.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// DashboardRequest represents the query parameters of the dashboard endpoint.
// The index defaults to NDRE, the index with zones.
type DashboardRequest struct {
	ParcelID  string `form:"parcel_id" binding:"omitempty,parcel_id"`
	IndexType string `form:"index_type" binding:"omitempty,oneof=NDVI NDMI NDRE"`
}

// Dashboard handles GET /api/v1/dashboard.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	var req DashboardRequest
	if !bindQuery(c, &req) {
		return
	}

	dashboard, err := h.service.LoadDashboard(c.Request.Context(), req.ParcelID, indexType(req.IndexType, models.IndexNDRE))
	if err != nil {
		handleServiceError(c, err, "Failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
