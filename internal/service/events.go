package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/queue"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// EventPublisher delivers booking events after commit.  Implementations
// may fail; the lifecycle manager only logs those failures.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// AvailabilityInvalidator drops cached availability of a vehicle.
type AvailabilityInvalidator interface {
	InvalidateVehicle(ctx context.Context, vehicleID string) error
}

// afterCommitTimeout bounds side effects that run once a transaction has
// been committed.
const afterCommitTimeout = 3 * time.Second

func newBookingEvent(typ string, b *model.Booking, previous model.BookingStatus, at time.Time) queue.BookingEvent {
	ev := queue.BookingEvent{
		MessageID:        uuid.NewString(),
		Type:             typ,
		BookingID:        b.ID,
		BookingNumber:    b.BookingNumber,
		VehicleID:        b.VehicleID,
		StartDate:        utils.FormatDay(b.StartDate),
		EndDate:          utils.FormatDay(b.EndDate),
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		TotalAmountCents: b.TotalAmountCents,
		Currency:         b.Currency,
		CustomerEmail:    b.CustomerEmail,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if previous != "" && previous != b.Status {
		ev.PreviousStatus = string(previous)
	}
	return ev
}
