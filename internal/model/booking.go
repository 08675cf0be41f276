package model

import "time"

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
	StatusNoShow     BookingStatus = "NO_SHOW"
)

// PaymentStatus is tracked independently of BookingStatus.  The payment
// processor owns it; this service only records what it is told.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentFailed            PaymentStatus = "FAILED"
)

// transitions lists the statuses reachable from each non-terminal state.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransitionTo reports whether a booking in state s may move to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether a booking in state s still occupies its dates.
// Only cancellation gives the days back.
func (s BookingStatus) Blocking() bool { return s != StatusCancelled }

// Valid reports whether p is one of the known payment statuses.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Booking is a reservation of one vehicle for the day range
// [StartDate, EndDate).  EndDate is the return day: the car is handed back
// that day and may be picked up again by the next customer the same day.
//
// Fields:
//  ID               – primary key identifier.
//  BookingNumber    – unique, human readable reference (CR-YYYYMMDD-XXXXXXXX).
//  VehicleID        – opaque inventory id of the rented vehicle.
//  StartDate        – pickup day (inclusive), midnight UTC.
//  EndDate          – return day (exclusive), midnight UTC.
//  Status           – lifecycle status.
//  PaymentStatus    – payment axis, independent of Status.
//  PaymentRef       – confirmation reference from the payment processor.
//  CustomerName     – payer / driver name.
//  CustomerEmail    – payer email.
//  CustomerPhone    – optional phone number.
//  TotalAmountCents – amount charged, in minor units.
//  Currency         – ISO 4217 code.
//  CancelledAt      – set when the booking is cancelled.
type Booking struct {
	ID               uint64        // bookings.id
	BookingNumber    string        // bookings.booking_number
	VehicleID        string        // bookings.vehicle_id
	StartDate        time.Time     // bookings.start_date
	EndDate          time.Time     // bookings.end_date
	Status           BookingStatus // bookings.status
	PaymentStatus    PaymentStatus // bookings.payment_status
	PaymentRef       *string       // bookings.payment_ref (nullable)
	CustomerName     string        // bookings.customer_name
	CustomerEmail    string        // bookings.customer_email
	CustomerPhone    *string       // bookings.customer_phone (nullable)
	TotalAmountCents uint64        // bookings.total_amount_cents
	Currency         string        // bookings.currency
	CancelledAt      *time.Time    // bookings.cancelled_at (nullable)
	CreatedAt        time.Time     // bookings.created_at
	UpdatedAt        time.Time     // bookings.updated_at
}
