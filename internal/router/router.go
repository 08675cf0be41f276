// Package router registers HTTP routes on the Echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental-availability/internal/handler"
)

// RegisterRoutes registers routes that need no authentication and no
// domain services.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers the availability and checkout endpoints.  cache
// wraps availability reads and limit wraps booking creation; either may be
// a pass-through when Redis is not configured.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler, b *handler.BookingHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")

	g.GET("/availability", a.GetAvailability, cache)
	g.GET("/availability/check", a.CheckAvailability)

	g.POST("/bookings", b.CreateBooking, limit)
	g.GET("/bookings/:number", b.GetBooking)
}
