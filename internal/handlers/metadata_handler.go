package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/stwalsh4118/fieldwatch/internal/errors"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

const maxMetadataKeyLength = 128

// MetadataHandler exposes the key/value metadata of the store backend.
type MetadataHandler struct {
	service services.DashboardService
}

// NewMetadataHandler creates a new MetadataHandler instance.
func NewMetadataHandler(service services.DashboardService) *MetadataHandler {
	return &MetadataHandler{service: service}
}

// MetadataResponse is one metadata entry.
type MetadataResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Get handles GET /api/v1/metadata/:key.
func (h *MetadataHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if key == "" || len(key) > maxMetadataKeyLength {
		apierrors.BadRequest(c, "Invalid metadata key", nil)
		return
	}

	value, err := h.service.Metadata(c.Request.Context(), key)
	if err != nil {
		handleServiceError(c, err, "Failed to load metadata")
		return
	}

	c.JSON(http.StatusOK, MetadataResponse{Key: key, Value: value})
}
