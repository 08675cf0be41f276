package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/service"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// AvailabilityHandler serves the read side used by the booking calendar.
type AvailabilityHandler struct {
	Projector *service.Projector
	Resolver  *service.Resolver
	Log       log.FieldLogger
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(p *service.Projector, r *service.Resolver, logger log.FieldLogger) *AvailabilityHandler {
	if p == nil || r == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AvailabilityHandler{Projector: p, Resolver: r, Log: logger}
}

type dayStateDTO struct {
	Booked bool   `json:"booked"`
	Reason string `json:"reason,omitempty"`
}

// GetAvailability handles GET /v1/availability?vehicleId&startDate&endDate.
// Both dates are optional; the window defaults to the configured horizon
// starting today.
func (h *AvailabilityHandler) GetAvailability(c echo.Context) error {
	start, end, err := queryRange(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	p, err := h.Projector.Project(c.Request().Context(), c.QueryParam("vehicleId"), start, end)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	blocked := make(map[string]dayStateDTO, len(p.BlockedDates))
	for day, st := range p.BlockedDates {
		blocked[day] = dayStateDTO{Booked: st.Booked, Reason: st.Reason}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"vehicleId":     p.VehicleID,
		"startDate":     utils.FormatDay(p.From),
		"endDate":       utils.FormatDay(p.To),
		"blockedDates":  blocked,
		"bookingsCount": p.BookingsCount,
	})
}

// CheckAvailability handles GET /v1/availability/check.  All parameters
// are required.
func (h *AvailabilityHandler) CheckAvailability(c echo.Context) error {
	start, end, err := queryRange(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	res, err := h.Resolver.Check(c.Request().Context(), c.QueryParam("vehicleId"), start, end)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"available":        res.Available,
		"conflictingDates": dayStrings(res.ConflictingDates),
	})
}
