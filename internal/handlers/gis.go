package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/services"
)

// GISHandler serves the public map feed.
type GISHandler struct {
	service *services.GISService
}

// NewGISHandler constructs a GISHandler.
func NewGISHandler(service *services.GISService) *GISHandler {
	return &GISHandler{service: service}
}

// GET /api/gis/features?filter=all|issues|projects|completed
//
// The body is a bare GeoJSON FeatureCollection so map libraries can load it
// directly; errors still use the standard envelope.
func (h *GISHandler) Features(c *gin.Context) {
	collection, err := h.service.Features(requestContext(c), c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, collection)
}
