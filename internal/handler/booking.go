package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/service"
)

// BookingHandler exposes booking creation and lookup to the checkout flow.
// Creation is called once the payment processor has confirmed the charge.
type BookingHandler struct {
	Lifecycle *service.LifecycleManager
	Log       log.FieldLogger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(lm *service.LifecycleManager, logger log.FieldLogger) *BookingHandler {
	if lm == nil {
		panic("nil lifecycle manager passed to NewBookingHandler")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &BookingHandler{Lifecycle: lm, Log: logger}
}

type createBookingRequest struct {
	VehicleID string `json:"vehicleId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Customer  struct {
		Name  string  `json:"name"`
		Email string  `json:"email"`
		Phone *string `json:"phone"`
	} `json:"customer"`
	PaymentRef       string `json:"paymentRef"`
	TotalAmountCents uint64 `json:"totalAmountCents"`
	Currency         string `json:"currency"`
}

// CreateBooking handles POST /v1/bookings.  It returns 201 with the
// booking, 400 on invalid input and 409 with conflictingDates when any
// requested day is taken.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var body createBookingRequest
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
	b, err := h.Lifecycle.Create(c.Request().Context(), service.CreateBookingInput{
		VehicleID:        body.VehicleID,
		StartDate:        start,
		EndDate:          end,
		CustomerName:     body.Customer.Name,
		CustomerEmail:    body.Customer.Email,
		CustomerPhone:    body.Customer.Phone,
		PaymentRef:       body.PaymentRef,
		TotalAmountCents: body.TotalAmountCents,
		Currency:         body.Currency,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetBooking handles GET /v1/bookings/:number.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.Lifecycle.GetByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
