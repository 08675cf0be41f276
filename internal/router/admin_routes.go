package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental-availability/internal/handler"
	"github.com/iliyamo/car-rental-availability/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  All routes
// require a valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)

	// ---- Bookings ----
	g.GET("/bookings/:id", h.GetBooking)
	g.PATCH("/bookings/:id/status", h.UpdateStatus)
	g.GET("/vehicles/:vehicleId/bookings", h.ListVehicleBookings)

	// ---- Manual blocks ----
	g.POST("/vehicles/:vehicleId/blocks", h.CreateBlock)
	g.GET("/vehicles/:vehicleId/blocks", h.ListBlocks)
	g.DELETE("/vehicles/:vehicleId/blocks", h.DeleteBlocks)
}
