package model

import "time"

// Reason values stored in availability_days.reason.
const (
	ReasonBooked      = "BOOKED"
	ReasonMaintenance = "MAINTENANCE"
	ReasonBlocked     = "BLOCKED"
)

// AvailabilityDay records the occupancy of one vehicle on one calendar day.
// (VehicleID, Day) is unique.  Rows written by the booking lifecycle carry
// Reason BOOKED and the owning BookingID; rows written by the admin block
// feature have a nil BookingID.  A row is never re-assigned to another
// owner in place: it is deleted and recreated.
type AvailabilityDay struct {
	ID          uint64    // availability_days.id
	VehicleID   string    // availability_days.vehicle_id
	Day         time.Time // availability_days.day (midnight UTC)
	IsAvailable bool      // availability_days.is_available
	Reason      string    // availability_days.reason
	BookingID   *uint64   // availability_days.booking_id (nullable owner)
	Note        *string   // availability_days.note (nullable)
	CreatedAt   time.Time // availability_days.created_at
}

// Manual reports whether the row belongs to the admin block feature rather
// than to a booking.
func (d AvailabilityDay) Manual() bool { return d.BookingID == nil }
