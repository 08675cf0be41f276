package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// Availability is the answer to "can this vehicle be booked for
// [start, end)?".  ConflictingDates lists, ascending and without
// duplicates, every requested day that is taken.
type Availability struct {
	Available        bool
	ConflictingDates []time.Time
}

// Resolver decides whether a date range is bookable.  It never writes.
type Resolver struct {
	Bookings *repository.BookingRepo
	Days     *repository.AvailabilityRepo
}

// NewResolver constructs a Resolver.  Both repositories must be non-nil.
func NewResolver(bookings *repository.BookingRepo, days *repository.AvailabilityRepo) *Resolver {
	if bookings == nil || days == nil {
		panic("nil repository passed to NewResolver")
	}
	return &Resolver{Bookings: bookings, Days: days}
}

// Check runs the availability check outside of any transaction.  A store
// failure is returned as an error and must never be read as "available".
func (r *Resolver) Check(ctx context.Context, vehicleID string, start, end time.Time) (Availability, error) {
	return r.CheckTx(ctx, r.Bookings.DB(), vehicleID, start, end)
}

// CheckTx runs the check on the given transaction so that the lifecycle
// manager can decide and write under the same snapshot.
func (r *Resolver) CheckTx(ctx context.Context, tx repository.Querier, vehicleID string, start, end time.Time) (Availability, error) {
	vehicleID, start, end, err := validateRange(vehicleID, start, end)
	if err != nil {
		return Availability{}, err
	}
	bookings, err := r.Bookings.ListOverlappingTx(ctx, tx, vehicleID, start, end)
	if err != nil {
		return Availability{}, storage("load overlapping bookings", err)
	}
	blocked, err := r.Days.ListBlockedTx(ctx, tx, vehicleID, start, end)
	if err != nil {
		return Availability{}, storage("load blocked days", err)
	}
	dates := conflictingDays(start, end, bookings, blocked)
	return Availability{Available: len(dates) == 0, ConflictingDates: dates}, nil
}

// conflictingDays unions the days of [start, end) covered by a blocking
// booking or by an unavailable occupancy row.
func conflictingDays(start, end time.Time, bookings []model.Booking, blocked []model.AvailabilityDay) []time.Time {
	seen := make(map[int64]time.Time)
	for _, b := range bookings {
		if !b.Status.Blocking() || !utils.Overlaps(b.StartDate, b.EndDate, start, end) {
			continue
		}
		from, to := b.StartDate, b.EndDate
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		for _, d := range utils.EachDay(from, to) {
			seen[d.Unix()] = d
		}
	}
	for _, row := range blocked {
		d := utils.Day(row.Day)
		if row.IsAvailable || d.Before(start) || !d.Before(end) {
			continue
		}
		seen[d.Unix()] = d
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// validateRange normalises a (vehicle, range) request to calendar days and
// rejects it before any store access when malformed.
func validateRange(vehicleID string, start, end time.Time) (string, time.Time, time.Time, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return "", start, end, invalid("vehicleId", "is required")
	}
	if len(vehicleID) > 64 {
		return "", start, end, invalid("vehicleId", "must be at most 64 characters")
	}
	if start.IsZero() {
		return "", start, end, invalid("startDate", "is required")
	}
	if end.IsZero() {
		return "", start, end, invalid("endDate", "is required")
	}
	start, end = utils.Day(start), utils.Day(end)
	if !start.Before(end) {
		return "", start, end, invalid("endDate", "must be after startDate")
	}
	return vehicleID, start, end, nil
}
