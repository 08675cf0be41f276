package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/car-rental-availability/internal/model"
)

func TestProject(t *testing.T) {
	owner := uint64(1)
	bookings := []model.Booking{
		booking(model.StatusConfirmed, "2025-06-29", "2025-07-02"),
		booking(model.StatusInProgress, "2025-07-04", "2025-07-05"),
		booking(model.StatusCancelled, "2025-07-06", "2025-07-08"),
	}
	blocked := []model.AvailabilityDay{
		blockRow("2025-07-04", false),
		blockRow("2025-07-08", false),
		blockRow("2025-07-09", true),
		{VehicleID: "car-1", Day: day("2025-07-01"), Reason: model.ReasonBooked, BookingID: &owner},
	}

	got, count := project(day("2025-07-01"), day("2025-07-10"), bookings, blocked)

	assert.Equal(t, 2, count)
	assert.Equal(t, map[string]DayState{
		"2025-07-01": {Booked: true, Reason: BookedReason},
		"2025-07-04": {Booked: true, Reason: BookedReason},
		"2025-07-08": {Booked: false, Reason: model.ReasonMaintenance},
	}, got)
}

func TestProjectorDefaultsToHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, "car-1", "2025-06-20", "2025-06-22")
	f.book(t, "car-1", "2025-09-12", "2025-09-15")
	_, err := f.blocks.Block(ctx, BlockInput{VehicleID: "car-1", StartDate: day("2025-06-25"), EndDate: day("2025-06-26"), Reason: "maintenance", Note: "tyres"})
	require.NoError(t, err)

	p, err := f.projector.Project(ctx, "car-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", p.From.Format("2006-01-02"))
	assert.Equal(t, "2025-09-13", p.To.Format("2006-01-02"))
	assert.Equal(t, 2, p.BookingsCount)
	assert.Equal(t, map[string]DayState{
		"2025-06-20": {Booked: true, Reason: BookedReason},
		"2025-06-21": {Booked: true, Reason: BookedReason},
		"2025-06-25": {Booked: false, Reason: model.ReasonMaintenance},
		"2025-09-12": {Booked: true, Reason: BookedReason},
	}, p.BlockedDates)
}

func TestProjectorRejectsHugeRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.projector.Project(context.Background(), "car-1", day("2025-01-01"), day("2027-01-01"))
	assert.ErrorIs(t, err, ErrValidation)
}
