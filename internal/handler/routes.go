package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/metrics"
	"github.com/Rodovar-GPS/GPS/internal/middleware"
	"github.com/Rodovar-GPS/GPS/internal/service"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// Handlers groups the route handlers mounted by Register.
type Handlers struct {
	Public *PublicHandler
	Auth   *AuthHandler
	Driver *DriverHandler
	Admin  *AdminHandler
	Upload *UploadHandler
}

// Register mounts every route on r. /metrics is only mounted when m is
// non-nil.
func Register(r *gin.Engine, h Handlers, authService *service.AuthService, m *metrics.Collector) {
	r.GET("/health", h.Public.Health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/track/:code", h.Public.Track)
		api.GET("/settings", h.Public.Settings)
		api.GET("/uploads/images/:filename", h.Upload.ServeImage)

		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		api.POST("/driver/login", h.Driver.Login)
		driver := api.Group("/driver")
		driver.Use(middleware.JWTAuth(authService), middleware.RequireShipment())
		{
			driver.GET("/shipment", h.Driver.Shipment)
			driver.POST("/trip/start", h.Driver.StartTrip)
			driver.POST("/trip/stop", h.Driver.StopTrip)
			driver.POST("/position", h.Driver.Position)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.JWTAuth(authService), middleware.RequireRole(storage.RoleMaster, storage.RoleBasic))
		{
			admin.GET("/shipments", h.Admin.ListShipments)
			admin.POST("/shipments", h.Admin.CreateShipment)
			admin.GET("/shipments/code", h.Admin.NewShipmentCode)
			admin.GET("/shipments/:code", h.Admin.GetShipment)
			admin.PUT("/shipments/:code", h.Admin.UpdateShipment)
			admin.DELETE("/shipments/:code", h.Admin.DeleteShipment)
			admin.POST("/shipments/:code/optimize", h.Admin.OptimizeShipment)
			admin.POST("/shipments/:code/deliver", h.Admin.DeliverShipment)

			admin.GET("/drivers", h.Admin.ListDrivers)
			admin.POST("/drivers", h.Admin.CreateDriver)
			admin.GET("/drivers/:id", h.Admin.GetDriver)
			admin.PUT("/drivers/:id", h.Admin.UpdateDriver)
			admin.DELETE("/drivers/:id", h.Admin.DeleteDriver)

			admin.GET("/fleet/live", h.Admin.LiveFleet)
			admin.GET("/fleet/maintenance", h.Admin.MaintenanceAlerts)

			admin.POST("/geo/route", h.Admin.OptimizeRoute)
			admin.GET("/geo/locate", h.Admin.Locate)

			admin.POST("/uploads/images", h.Upload.UploadImage)

			master := admin.Group("", middleware.RequireRole(storage.RoleMaster))
			{
				master.GET("/users", h.Admin.ListUsers)
				master.POST("/users", h.Admin.SaveUser)
				master.DELETE("/users/:username", h.Admin.DeleteUser)
				master.PUT("/settings", h.Admin.UpdateSettings)
			}
		}
	}
}
