package service

import (
	"context"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// BookedReason is the reason shown for days taken by a booking.
const BookedReason = "Booked"

// DefaultHorizonDays is used when the caller gives no end date.
const DefaultHorizonDays = 90

// maxProjectionDays bounds a single projection request.
const maxProjectionDays = 366

// DayState describes one blocked calendar day.  Booked is true for days
// taken by a booking and false for manual blocks; both prevent selection.
type DayState struct {
	Booked bool
	Reason string
}

// Projection is the calendar view of one vehicle over [From, To).  It is
// recomputed on every request and never stored.
type Projection struct {
	VehicleID     string
	From          time.Time
	To            time.Time
	BlockedDates  map[string]DayState
	BookingsCount int
}

// Projector builds calendar views from bookings and manual blocks.
type Projector struct {
	Bookings    *repository.BookingRepo
	Days        *repository.AvailabilityRepo
	HorizonDays int
	Now         func() time.Time
}

// NewProjector constructs a Projector with the default 90 day horizon.
func NewProjector(bookings *repository.BookingRepo, days *repository.AvailabilityRepo) *Projector {
	if bookings == nil || days == nil {
		panic("nil repository passed to NewProjector")
	}
	return &Projector{Bookings: bookings, Days: days, HorizonDays: DefaultHorizonDays, Now: time.Now}
}

// Project returns the blocked days of a vehicle between from (inclusive)
// and to (exclusive).  A zero from means today; a zero to means from plus
// the configured horizon.
func (p *Projector) Project(ctx context.Context, vehicleID string, from, to time.Time) (*Projection, error) {
	if from.IsZero() {
		from = utils.Day(p.Now().UTC())
	}
	if to.IsZero() {
		horizon := p.HorizonDays
		if horizon <= 0 {
			horizon = DefaultHorizonDays
		}
		to = utils.Day(from).AddDate(0, 0, horizon)
	}
	vehicleID, from, to, err := validateRange(vehicleID, from, to)
	if err != nil {
		return nil, err
	}
	if utils.NightsBetween(from, to) > maxProjectionDays {
		return nil, invalid("endDate", "range must not exceed %d days", maxProjectionDays)
	}
	bookings, err := p.Bookings.ListOverlapping(ctx, vehicleID, from, to)
	if err != nil {
		return nil, storage("load bookings", err)
	}
	blocked, err := p.Days.ListBlocked(ctx, vehicleID, from, to)
	if err != nil {
		return nil, storage("load blocked days", err)
	}
	dates, count := project(from, to, bookings, blocked)
	return &Projection{
		VehicleID:     vehicleID,
		From:          from,
		To:            to,
		BlockedDates:  dates,
		BookingsCount: count,
	}, nil
}

// project expands manual blocks first and bookings second, so a booked
// day always reads as booked.  Days outside [from, to) are dropped.
func project(from, to time.Time, bookings []model.Booking, blocked []model.AvailabilityDay) (map[string]DayState, int) {
	out := make(map[string]DayState)
	for _, row := range blocked {
		if row.IsAvailable || !row.Manual() {
			continue
		}
		d := utils.Day(row.Day)
		if d.Before(from) || !d.Before(to) {
			continue
		}
		out[utils.FormatDay(d)] = DayState{Booked: false, Reason: row.Reason}
	}
	count := 0
	for _, b := range bookings {
		if !b.Status.Blocking() || !utils.Overlaps(b.StartDate, b.EndDate, from, to) {
			continue
		}
		count++
		for _, d := range utils.EachDay(b.StartDate, b.EndDate) {
			if d.Before(from) || !d.Before(to) {
				continue
			}
			out[utils.FormatDay(d)] = DayState{Booked: true, Reason: BookedReason}
		}
	}
	return out, count
}
