package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// BookingRepo provides data access to the bookings table.  Dates are bound
// as YYYY-MM-DD strings and timestamps as UTC time.Time values so the same
// statements run on MySQL and SQLite.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so that services can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, booking_number, vehicle_id, start_date, end_date, status, payment_status,
       payment_ref, customer_name, customer_email, customer_phone, total_amount_cents, currency,
       cancelled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		status      string
		payment     string
		paymentRef  sql.NullString
		phone       sql.NullString
		cancelledAt sql.NullTime
	)
	if err := s.Scan(
		&b.ID, &b.BookingNumber, &b.VehicleID, &b.StartDate, &b.EndDate, &status, &payment,
		&paymentRef, &b.CustomerName, &b.CustomerEmail, &phone, &b.TotalAmountCents, &b.Currency,
		&cancelledAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.StartDate = utils.Day(b.StartDate)
	b.EndDate = utils.Day(b.EndDate)
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	if paymentRef.Valid {
		ref := paymentRef.String
		b.PaymentRef = &ref
	}
	if phone.Valid {
		p := phone.String
		b.CustomerPhone = &p
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	return &b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID.  CreatedAt and UpdatedAt
// must be set by the caller.  The caller must commit or rollback.
func (r *BookingRepo) CreateTx(ctx context.Context, tx Querier, b *model.Booking) error {
	if !b.Status.Valid() || !b.PaymentStatus.Valid() {
		return fmt.Errorf("insert booking: invalid status %q / payment status %q", b.Status, b.PaymentStatus)
	}
	const q = `INSERT INTO bookings (booking_number, vehicle_id, start_date, end_date, status, payment_status,
                      payment_ref, customer_name, customer_email, customer_phone, total_amount_cents, currency,
                      cancelled_at, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.BookingNumber, b.VehicleID, utils.FormatDay(b.StartDate), utils.FormatDay(b.EndDate),
		string(b.Status), string(b.PaymentStatus), nullString(b.PaymentRef),
		b.CustomerName, b.CustomerEmail, nullString(b.CustomerPhone), b.TotalAmountCents, b.Currency,
		nullTime(b.CancelledAt), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsSerializationFailure(err) {
			return errors.Join(ErrConflict, err)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID returns the booking with the given ID or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx is GetByID within the provided transaction.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx Querier, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetByNumber looks a booking up by its human readable number.
func (r *BookingRepo) GetByNumber(ctx context.Context, number string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_number = ?`, number)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListOverlappingTx returns every non-cancelled booking of the vehicle
// whose [start_date, end_date) intersects [start, end).  A booking ending
// on start does not intersect.  Results are ordered by start date.
func (r *BookingRepo) ListOverlappingTx(ctx context.Context, tx Querier, vehicleID string, start, end time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE vehicle_id = ? AND status <> ? AND start_date < ? AND end_date > ?
               ORDER BY start_date, id`
	return r.list(ctx, tx, q, vehicleID, string(model.StatusCancelled), utils.FormatDay(end), utils.FormatDay(start))
}

// ListOverlapping is ListOverlappingTx outside a transaction.
func (r *BookingRepo) ListOverlapping(ctx context.Context, vehicleID string, start, end time.Time) ([]model.Booking, error) {
	return r.ListOverlappingTx(ctx, r.db, vehicleID, start, end)
}

// ListByVehicle returns all bookings of a vehicle, newest pickup first,
// including cancelled ones.
func (r *BookingRepo) ListByVehicle(ctx context.Context, vehicleID string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE vehicle_id = ? ORDER BY start_date DESC, id DESC`
	return r.list(ctx, r.db, q, vehicleID)
}

func (r *BookingRepo) list(ctx context.Context, tx Querier, q string, args ...any) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatusTx sets the status of a booking.  cancelledAt is written only
// when non-nil so that a later status change never clears it.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx Querier, id uint64, status model.BookingStatus, cancelledAt *time.Time, now time.Time) error {
	const q = `UPDATE bookings SET status = ?, cancelled_at = COALESCE(?, cancelled_at), updated_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), nullTime(cancelledAt), now.UTC(), id)
	if err != nil {
		if IsSerializationFailure(err) {
			return errors.Join(ErrConflict, err)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update status of booking %d: %w", id, ErrBookingNotFound)
	}
	return nil
}
