package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// AvailabilityRepo provides data access to the availability_days table.
// It is the only code that writes occupancy rows.  Every delete is scoped
// by owner (booking_id) or by the manual/booked distinction so that the
// booking lifecycle and the admin block feature never clear each other's
// rows.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns a new AvailabilityRepo bound to the provided database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

const dayColumns = `id, vehicle_id, day, is_available, reason, booking_id, note, created_at`

func scanDay(s rowScanner) (*model.AvailabilityDay, error) {
	var (
		d         model.AvailabilityDay
		bookingID sql.NullInt64
		note      sql.NullString
	)
	if err := s.Scan(&d.ID, &d.VehicleID, &d.Day, &d.IsAvailable, &d.Reason, &bookingID, &note, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Day = utils.Day(d.Day)
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		d.BookingID = &id
	}
	if note.Valid {
		n := note.String
		d.Note = &n
	}
	return &d, nil
}

func (r *AvailabilityRepo) list(ctx context.Context, tx Querier, q string, args ...any) ([]model.AvailabilityDay, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	days := make([]model.AvailabilityDay, 0)
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// ListBlockedTx returns rows of the vehicle in [start, end) with
// is_available = false, whoever owns them, ordered by day.
func (r *AvailabilityRepo) ListBlockedTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	const q = `SELECT ` + dayColumns + `
               FROM availability_days
               WHERE vehicle_id = ? AND day >= ? AND day < ? AND is_available = ?
               ORDER BY day`
	return r.list(ctx, tx, q, vehicleID, utils.FormatDay(start), utils.FormatDay(end), false)
}

// ListBlocked is ListBlockedTx outside a transaction.
func (r *AvailabilityRepo) ListBlocked(ctx context.Context, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	return r.ListBlockedTx(ctx, r.db, vehicleID, start, end)
}

// ListManualTx returns admin-owned rows (booking_id IS NULL) in [start, end).
func (r *AvailabilityRepo) ListManualTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	const q = `SELECT ` + dayColumns + `
               FROM availability_days
               WHERE vehicle_id = ? AND day >= ? AND day < ? AND booking_id IS NULL
               ORDER BY day`
	return r.list(ctx, tx, q, vehicleID, utils.FormatDay(start), utils.FormatDay(end))
}

// ListManual is ListManualTx outside a transaction.
func (r *AvailabilityRepo) ListManual(ctx context.Context, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	return r.ListManualTx(ctx, r.db, vehicleID, start, end)
}

// ListOwnedTx returns booking-owned rows in [start, end).
func (r *AvailabilityRepo) ListOwnedTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	const q = `SELECT ` + dayColumns + `
               FROM availability_days
               WHERE vehicle_id = ? AND day >= ? AND day < ? AND booking_id IS NOT NULL
               ORDER BY day`
	return r.list(ctx, tx, q, vehicleID, utils.FormatDay(start), utils.FormatDay(end))
}

// ListByBookingTx returns the rows owned by a booking.
func (r *AvailabilityRepo) ListByBookingTx(ctx context.Context, tx Querier, bookingID uint64) ([]model.AvailabilityDay, error) {
	const q = `SELECT ` + dayColumns + ` FROM availability_days WHERE booking_id = ? ORDER BY day`
	return r.list(ctx, tx, q, bookingID)
}

// InsertDaysTx inserts multiple rows in a single statement.  A collision
// on the (vehicle_id, day) unique key, or a deadlock with a concurrent
// writer, is reported as ErrConflict.  Passing an empty slice has no
// effect and returns nil.
func (r *AvailabilityRepo) InsertDaysTx(ctx context.Context, tx Querier, days []model.AvailabilityDay) error {
	if len(days) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO availability_days (vehicle_id, day, is_available, reason, booking_id, note, created_at) VALUES `)
	args := make([]any, 0, len(days)*7)
	for i, d := range days {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		var owner sql.NullInt64
		if d.BookingID != nil {
			owner = sql.NullInt64{Int64: int64(*d.BookingID), Valid: true}
		}
		args = append(args, d.VehicleID, utils.FormatDay(d.Day), d.IsAvailable, d.Reason, owner, nullString(d.Note), d.CreatedAt.UTC())
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return classifyWrite(err)
}

// DeleteOpenTx removes manual rows in [start, end) that mark the vehicle
// as available.  Such rows carry no occupancy and are superseded when a
// booking or a block takes the day.
func (r *AvailabilityRepo) DeleteOpenTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) (int64, error) {
	const q = `DELETE FROM availability_days
               WHERE vehicle_id = ? AND day >= ? AND day < ? AND is_available = ? AND booking_id IS NULL`
	return exec(ctx, tx, q, vehicleID, utils.FormatDay(start), utils.FormatDay(end), true)
}

// DeleteManualTx removes every admin-owned row in [start, end).  Rows
// owned by a booking are left alone.
func (r *AvailabilityRepo) DeleteManualTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) (int64, error) {
	const q = `DELETE FROM availability_days
               WHERE vehicle_id = ? AND day >= ? AND day < ? AND booking_id IS NULL`
	return exec(ctx, tx, q, vehicleID, utils.FormatDay(start), utils.FormatDay(end))
}

// DeleteByBookingTx removes the BOOKED rows owned by a booking and returns
// how many were deleted.
func (r *AvailabilityRepo) DeleteByBookingTx(ctx context.Context, tx Querier, bookingID uint64) (int64, error) {
	const q = `DELETE FROM availability_days WHERE booking_id = ? AND reason = ?`
	return exec(ctx, tx, q, bookingID, model.ReasonBooked)
}

func exec(ctx context.Context, tx Querier, q string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, classifyWrite(err)
	}
	return res.RowsAffected()
}
