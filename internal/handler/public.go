package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/service"
)

// PublicHandler serves the unauthenticated tracking page data.
type PublicHandler struct {
	tracking *service.TrackingService
	settings *service.SettingsService
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(tracking *service.TrackingService, settings *service.SettingsService) *PublicHandler {
	return &PublicHandler{tracking: tracking, settings: settings}
}

// Health handles GET /health
func (h *PublicHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Track handles GET /api/v1/track/:code
//
// Response 200:
//
//	{"shipment": {...}, "progress": 42, "remaining_km": 210, "bearing": 71.5,
//	 "next_target": {"lat": -22.9, "lng": -43.1}, "eta_minutes": 210}
//
// Response 404: unknown code.
func (h *PublicHandler) Track(c *gin.Context) {
	v, err := h.tracking.Track(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "tracking lookup", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Settings handles GET /api/v1/settings
func (h *PublicHandler) Settings(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, "load settings", err)
		return
	}
	c.JSON(http.StatusOK, s)
}
