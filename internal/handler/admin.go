package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/service"
)

// AdminHandler serves fleet operators.  JWT authentication and the ADMIN
// role are enforced by middleware.
type AdminHandler struct {
	Lifecycle *service.LifecycleManager
	Blocks    *service.BlockManager
	Log       log.FieldLogger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(lm *service.LifecycleManager, bm *service.BlockManager, logger log.FieldLogger) *AdminHandler {
	if lm == nil || bm == nil {
		panic("nil service passed to NewAdminHandler")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AdminHandler{Lifecycle: lm, Blocks: bm, Log: logger}
}

// GetBooking handles GET /v1/admin/bookings/:id.
func (h *AdminHandler) GetBooking(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	b, err := h.Lifecycle.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// UpdateStatus handles PATCH /v1/admin/bookings/:id/status with body
// {"status": "..."}.  CANCELLED releases the booking's days.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status := model.BookingStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	b, err := h.Lifecycle.UpdateStatus(c.Request().Context(), id, status)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListVehicleBookings handles GET /v1/admin/vehicles/:vehicleId/bookings.
func (h *AdminHandler) ListVehicleBookings(c echo.Context) error {
	bookings, err := h.Lifecycle.ListByVehicle(c.Request().Context(), c.Param("vehicleId"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// CreateBlock handles POST /v1/admin/vehicles/:vehicleId/blocks.
func (h *AdminHandler) CreateBlock(c echo.Context) error {
	var body struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
		Reason    string `json:"reason"`
		Note      string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, err := parseDay("startDate", body.StartDate)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	end, err := parseDay("endDate", body.EndDate)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	days, err := h.Blocks.Block(c.Request().Context(), service.BlockInput{
		VehicleID: c.Param("vehicleId"),
		StartDate: start,
		EndDate:   end,
		Reason:    body.Reason,
		Note:      body.Note,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"days": toDayResponses(days)})
}

// DeleteBlocks handles DELETE /v1/admin/vehicles/:vehicleId/blocks.
func (h *AdminHandler) DeleteBlocks(c echo.Context) error {
	start, end, err := queryRange(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	n, err := h.Blocks.Unblock(c.Request().Context(), c.Param("vehicleId"), start, end)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": n})
}

// ListBlocks handles GET /v1/admin/vehicles/:vehicleId/blocks.
func (h *AdminHandler) ListBlocks(c echo.Context) error {
	start, end, err := queryRange(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	days, err := h.Blocks.List(c.Request().Context(), c.Param("vehicleId"), start, end)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"days": toDayResponses(days)})
}
