package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/middleware"
	"github.com/Rodovar-GPS/GPS/internal/service"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// AdminHandler holds the back-office services.
type AdminHandler struct {
	shipments *service.ShipmentService
	drivers   *service.DriverService
	fleet     *service.FleetService
	tracking  *service.TrackingService
	trips     *service.TripService
	users     *service.UserService
	settings  *service.SettingsService
	locator   service.Locator
}

// AdminServices lists the dependencies of NewAdminHandler.
type AdminServices struct {
	Shipments *service.ShipmentService
	Drivers   *service.DriverService
	Fleet     *service.FleetService
	Tracking  *service.TrackingService
	Trips     *service.TripService
	Users     *service.UserService
	Settings  *service.SettingsService
	Locator   service.Locator
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(s AdminServices) *AdminHandler {
	return &AdminHandler{
		shipments: s.Shipments,
		drivers:   s.Drivers,
		fleet:     s.Fleet,
		tracking:  s.Tracking,
		trips:     s.Trips,
		users:     s.Users,
		settings:  s.Settings,
		locator:   s.Locator,
	}
}

// ---------------------------------------------------------------------------
// Shipments
// ---------------------------------------------------------------------------

// ListShipments handles GET /api/v1/admin/shipments
//
// Optional query param status filters by ShipmentStatus.
func (h *AdminHandler) ListShipments(c *gin.Context) {
	list, err := h.shipments.List(c.Request.Context())
	if err != nil {
		respondError(c, "list shipments", err)
		return
	}
	if status := strings.ToUpper(c.Query("status")); status != "" {
		filtered := make([]storage.Shipment, 0, len(list))
		for _, s := range list {
			if string(s.Status) == status {
				filtered = append(filtered, s)
			}
		}
		list = filtered
	}
	c.JSON(http.StatusOK, list)
}

// CreateShipment handles POST /api/v1/admin/shipments
//
// An empty code is generated from the company prefix. Response 201.
func (h *AdminHandler) CreateShipment(c *gin.Context) {
	var in storage.Shipment
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sh, err := h.shipments.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, "create shipment", err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

// GetShipment handles GET /api/v1/admin/shipments/:code
func (h *AdminHandler) GetShipment(c *gin.Context) {
	sh, err := h.shipments.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "load shipment", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// UpdateShipment handles PUT /api/v1/admin/shipments/:code
func (h *AdminHandler) UpdateShipment(c *gin.Context) {
	var in storage.Shipment
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sh, err := h.shipments.Update(c.Request.Context(), c.Param("code"), in)
	if err != nil {
		respondError(c, "update shipment", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// DeleteShipment handles DELETE /api/v1/admin/shipments/:code
func (h *AdminHandler) DeleteShipment(c *gin.Context) {
	if err := h.shipments.Delete(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, "delete shipment", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OptimizeShipment handles POST /api/v1/admin/shipments/:code/optimize
func (h *AdminHandler) OptimizeShipment(c *gin.Context) {
	sh, err := h.shipments.OptimizeStops(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "optimize route", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// DeliverShipment handles POST /api/v1/admin/shipments/:code/deliver
func (h *AdminHandler) DeliverShipment(c *gin.Context) {
	sh, err := h.trips.Deliver(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "deliver shipment", err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// NewShipmentCode handles GET /api/v1/admin/shipments/code?company=AXD
func (h *AdminHandler) NewShipmentCode(c *gin.Context) {
	code, err := h.shipments.GenerateCode(c.Request.Context(), c.Query("company"))
	if err != nil {
		respondError(c, "generate code", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// ---------------------------------------------------------------------------
// Drivers
// ---------------------------------------------------------------------------

// ListDrivers handles GET /api/v1/admin/drivers
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	list, err := h.drivers.List(c.Request.Context())
	if err != nil {
		respondError(c, "list drivers", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateDriver handles POST /api/v1/admin/drivers
func (h *AdminHandler) CreateDriver(c *gin.Context) {
	var in storage.Driver
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.ID = ""
	d, err := h.drivers.Save(c.Request.Context(), in)
	if err != nil {
		respondError(c, "create driver", err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GetDriver handles GET /api/v1/admin/drivers/:id
func (h *AdminHandler) GetDriver(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "load driver", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateDriver handles PUT /api/v1/admin/drivers/:id
func (h *AdminHandler) UpdateDriver(c *gin.Context) {
	var in storage.Driver
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.drivers.Get(ctx, c.Param("id")); err != nil {
		respondError(c, "update driver", err)
		return
	}
	in.ID = c.Param("id")
	d, err := h.drivers.Save(ctx, in)
	if err != nil {
		respondError(c, "update driver", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDriver handles DELETE /api/v1/admin/drivers/:id
func (h *AdminHandler) DeleteDriver(c *gin.Context) {
	if err := h.drivers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "delete driver", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Fleet
// ---------------------------------------------------------------------------

// LiveFleet handles GET /api/v1/admin/fleet/live
func (h *AdminHandler) LiveFleet(c *gin.Context) {
	views, err := h.tracking.LiveFleet(c.Request.Context())
	if err != nil {
		respondError(c, "live fleet", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// MaintenanceAlerts handles GET /api/v1/admin/fleet/maintenance
func (h *AdminHandler) MaintenanceAlerts(c *gin.Context) {
	alerts, err := h.fleet.MaintenanceAlerts(c.Request.Context())
	if err != nil {
		respondError(c, "maintenance alerts", err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ---------------------------------------------------------------------------
// Geo tools
// ---------------------------------------------------------------------------

type optimizeRouteRequest struct {
	Origin geo.Coordinate  `json:"origin"`
	Stops  []geo.RouteStop `json:"stops"`
}

// OptimizeRoute handles POST /api/v1/admin/geo/route
//
// Request body: {"origin": {"lat": .., "lng": ..}, "stops": [...]}
// Response 200: the stops in visiting order with Order rewritten.
func (h *AdminHandler) OptimizeRoute(c *gin.Context) {
	var req optimizeRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Origin.IsUnknown() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin is required"})
		return
	}
	c.JSON(http.StatusOK, geo.OptimizeRoute(req.Origin, req.Stops))
}

// Locate handles GET /api/v1/admin/geo/locate?city=&state=
//
// Unresolvable cities yield the country centre, never an error.
func (h *AdminHandler) Locate(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}
	c.JSON(http.StatusOK, h.locator.LocateCity(c.Request.Context(), city, strings.TrimSpace(c.Query("state"))))
}

// ---------------------------------------------------------------------------
// Users (MASTER only)
// ---------------------------------------------------------------------------

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SaveUser handles POST /api/v1/admin/users
//
// Creates the user, or updates it when the username exists. An empty
// password keeps the current one.
func (h *AdminHandler) SaveUser(c *gin.Context) {
	var in service.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.Save(c.Request.Context(), in)
	if err != nil {
		respondError(c, "save user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /api/v1/admin/users/:username
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	if username == middleware.Username(c) {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot delete your own account"})
		return
	}
	if err := h.users.Delete(c.Request.Context(), username); err != nil {
		respondError(c, "delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSettings handles PUT /api/v1/admin/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var in storage.CompanySettings
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.settings.Save(c.Request.Context(), in)
	if err != nil {
		respondError(c, "save settings", err)
		return
	}
	c.JSON(http.StatusOK, s)
}
