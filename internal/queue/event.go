// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

// BookingEventsQueue is the durable queue every booking event is routed to.
const BookingEventsQueue = "booking.events"

// Event types carried in BookingEvent.Type.
const (
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is published after a booking transaction commits.  It holds
// enough information for downstream consumers to log, notify or feed
// analytics without querying the primary database.  Dates are YYYY-MM-DD
// and timestamps RFC3339 in UTC.
type BookingEvent struct {
	MessageID        string `json:"message_id"`
	Type             string `json:"type"`
	BookingID        uint64 `json:"booking_id"`
	BookingNumber    string `json:"booking_number"`
	VehicleID        string `json:"vehicle_id"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Status           string `json:"status"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	PaymentStatus    string `json:"payment_status"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	Currency         string `json:"currency"`
	CustomerEmail    string `json:"customer_email"`
	OccurredAt       string `json:"occurred_at"`
}
