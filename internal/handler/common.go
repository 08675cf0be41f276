package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/middleware"
	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/service"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// respondError maps service errors onto HTTP responses.  Conflicts carry
// the blocking dates so the client can re-prompt for other ones.
func respondError(c echo.Context, fallback log.FieldLogger, err error) error {
	var (
		ve *service.ValidationError
		ce *service.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            service.ErrConflict.Error(),
			"conflictingDates": ce.DateStrings(),
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	middleware.Logger(c, fallback).WithError(err).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseDay reads a YYYY-MM-DD value.  An empty value yields the zero time
// so that callers decide whether the field is required.
func parseDay(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := utils.ParseDay(raw)
	if err != nil {
		return time.Time{}, &service.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return d, nil
}

// queryRange parses the startDate and endDate query parameters.
func queryRange(c echo.Context) (time.Time, time.Time, error) {
	start, err := parseDay("startDate", c.QueryParam("startDate"))
	if err != nil {
		return start, start, err
	}
	end, err := parseDay("endDate", c.QueryParam("endDate"))
	return start, end, err
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func dayStrings(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, utils.FormatDay(d))
	}
	return out
}

type customerDTO struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

// bookingResponse is the JSON shape of a booking.  Dates are YYYY-MM-DD
// and EndDate is the return day.
type bookingResponse struct {
	ID               uint64      `json:"id"`
	BookingNumber    string      `json:"bookingNumber"`
	VehicleID        string      `json:"vehicleId"`
	StartDate        string      `json:"startDate"`
	EndDate          string      `json:"endDate"`
	Nights           int         `json:"nights"`
	Status           string      `json:"status"`
	PaymentStatus    string      `json:"paymentStatus"`
	PaymentRef       *string     `json:"paymentRef,omitempty"`
	Customer         customerDTO `json:"customer"`
	TotalAmountCents uint64      `json:"totalAmountCents"`
	Currency         string      `json:"currency"`
	CancelledAt      *time.Time  `json:"cancelledAt,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:               b.ID,
		BookingNumber:    b.BookingNumber,
		VehicleID:        b.VehicleID,
		StartDate:        utils.FormatDay(b.StartDate),
		EndDate:          utils.FormatDay(b.EndDate),
		Nights:           utils.NightsBetween(b.StartDate, b.EndDate),
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentRef:       b.PaymentRef,
		Customer:         customerDTO{Name: b.CustomerName, Email: b.CustomerEmail, Phone: b.CustomerPhone},
		TotalAmountCents: b.TotalAmountCents,
		Currency:         b.Currency,
		CancelledAt:      b.CancelledAt,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
	}
}

type dayResponse struct {
	Day         string  `json:"day"`
	IsAvailable bool    `json:"isAvailable"`
	Reason      string  `json:"reason"`
	Note        *string `json:"note,omitempty"`
}

func toDayResponses(days []model.AvailabilityDay) []dayResponse {
	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayResponse{Day: utils.FormatDay(d.Day), IsAvailable: d.IsAvailable, Reason: d.Reason, Note: d.Note})
	}
	return out
}
