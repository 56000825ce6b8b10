package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/middleware"
	"github.com/Rodovar-GPS/GPS/internal/service"
)

// DriverHandler serves the driver panel. Every route except Login acts on
// the shipment bound to the caller's token.
type DriverHandler struct {
	trips     *service.TripService
	shipments *service.ShipmentService
}

// NewDriverHandler creates a DriverHandler.
func NewDriverHandler(trips *service.TripService, shipments *service.ShipmentService) *DriverHandler {
	return &DriverHandler{trips: trips, shipments: shipments}
}

type driverLoginRequest struct {
	Code  string `json:"code"`
	Phone string `json:"phone"`
}

// Login handles POST /api/v1/driver/login
//
// Request body: {"code": "RODOVAR1234"} or {"phone": "(11) 98765-4321"}.
//
// Response 200: {"token": "...", "shipment": {...}}
// Response 404: no shipment for that code or phone.
// Response 409: the shipment was already delivered.
func (h *DriverHandler) Login(c *gin.Context) {
	var req driverLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || (strings.TrimSpace(req.Code) == "" && strings.TrimSpace(req.Phone) == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code or phone is required"})
		return
	}

	sess, err := h.trips.Login(c.Request.Context(), req.Code, req.Phone)
	if err != nil {
		respondError(c, "driver login", err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Shipment handles GET /api/v1/driver/shipment
func (h *DriverHandler) Shipment(c *gin.Context) {
	sh, err := h.shipments.Get(c.Request.Context(), middleware.ShipmentCode(c))
	if err != nil {
		respondError(c, "load shipment", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// StartTrip handles POST /api/v1/driver/trip/start
func (h *DriverHandler) StartTrip(c *gin.Context) {
	sh, err := h.trips.StartTrip(c.Request.Context(), middleware.ShipmentCode(c))
	if err != nil {
		respondError(c, "start trip", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// StopTrip handles POST /api/v1/driver/trip/stop
func (h *DriverHandler) StopTrip(c *gin.Context) {
	sh, err := h.trips.StopTrip(c.Request.Context(), middleware.ShipmentCode(c))
	if err != nil {
		respondError(c, "stop trip", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

type positionRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// Position handles POST /api/v1/driver/position
//
// Request body: {"lat": -23.55, "lng": -46.63}
//
// Response 200: the updated shipment.
// Response 400: missing or out-of-range coordinate.
// Response 409: no trip in progress.
func (h *DriverHandler) Position(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	sh, err := h.trips.Ping(c.Request.Context(), middleware.ShipmentCode(c), geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		respondError(c, "record position", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}
