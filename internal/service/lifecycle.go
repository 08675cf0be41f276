package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/queue"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// DefaultMaxStayDays caps the length of a single booking.
const DefaultMaxStayDays = 365

// DefaultTxTimeout bounds a booking transaction when none is configured.
const DefaultTxTimeout = 10 * time.Second

// CreateBookingInput is the data needed to create a booking once payment
// has been confirmed.  Dates are interpreted as calendar days; EndDate is
// the return day and is not occupied.
type CreateBookingInput struct {
	VehicleID        string
	StartDate        time.Time
	EndDate          time.Time
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    *string
	PaymentRef       string
	TotalAmountCents uint64
	Currency         string
}

// LifecycleManager creates, cancels and transitions bookings.  Every write
// decides and records inside one serializable transaction so that two
// overlapping requests can never both commit.
type LifecycleManager struct {
	db          *sql.DB
	bookings    *repository.BookingRepo
	days        *repository.AvailabilityRepo
	resolver    *Resolver
	events      EventPublisher
	cache       AvailabilityInvalidator
	log         log.FieldLogger
	txTimeout   time.Duration
	maxStayDays int
	now         func() time.Time
	newNumber   func(time.Time) string
}

// LifecycleOption customises a LifecycleManager.
type LifecycleOption func(*LifecycleManager)

// WithEvents sets the publisher used after commit.
func WithEvents(p EventPublisher) LifecycleOption {
	return func(m *LifecycleManager) { m.events = p }
}

// WithInvalidator sets the availability cache invalidated after commit.
func WithInvalidator(c AvailabilityInvalidator) LifecycleOption {
	return func(m *LifecycleManager) { m.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) LifecycleOption {
	return func(m *LifecycleManager) { m.log = l }
}

// WithTxTimeout sets the per-transaction timeout.
func WithTxTimeout(d time.Duration) LifecycleOption {
	return func(m *LifecycleManager) { m.txTimeout = d }
}

// WithMaxStayDays sets the longest bookable range in nights.
func WithMaxStayDays(n int) LifecycleOption {
	return func(m *LifecycleManager) { m.maxStayDays = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LifecycleOption {
	return func(m *LifecycleManager) { m.now = now }
}

// NewLifecycleManager wires the manager.  Repositories and the resolver
// must be non-nil.
func NewLifecycleManager(db *sql.DB, bookings *repository.BookingRepo, days *repository.AvailabilityRepo, resolver *Resolver, opts ...LifecycleOption) *LifecycleManager {
	if db == nil || bookings == nil || days == nil || resolver == nil {
		panic("nil dependency passed to NewLifecycleManager")
	}
	m := &LifecycleManager{
		db:          db,
		bookings:    bookings,
		days:        days,
		resolver:    resolver,
		log:         log.StandardLogger(),
		txTimeout:   DefaultTxTimeout,
		maxStayDays: DefaultMaxStayDays,
		now:         time.Now,
		newNumber:   NewBookingNumber,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewBookingNumber returns a human readable booking reference such as
// CR-20250701-1A2B3C4D.
func NewBookingNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("CR-%s-%s", at.UTC().Format("20060102"), id[:8])
}

func (m *LifecycleManager) validateCreate(in CreateBookingInput) (CreateBookingInput, error) {
	vehicleID, start, end, err := validateRange(in.VehicleID, in.StartDate, in.EndDate)
	if err != nil {
		return in, err
	}
	in.VehicleID, in.StartDate, in.EndDate = vehicleID, start, end
	if m.maxStayDays > 0 && utils.NightsBetween(start, end) > m.maxStayDays {
		return in, invalid("endDate", "stay must not exceed %d days", m.maxStayDays)
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerName == "" {
		return in, invalid("customerName", "is required")
	}
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if in.CustomerEmail == "" {
		return in, invalid("customerEmail", "is required")
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return in, invalid("customerEmail", "is not a valid address")
	}
	if in.CustomerPhone != nil {
		p := strings.TrimSpace(*in.CustomerPhone)
		if p == "" {
			in.CustomerPhone = nil
		} else {
			in.CustomerPhone = &p
		}
	}
	in.PaymentRef = strings.TrimSpace(in.PaymentRef)
	if in.PaymentRef == "" {
		return in, invalid("paymentRef", "is required")
	}
	if len(in.PaymentRef) > 128 {
		return in, invalid("paymentRef", "must be at most 128 characters")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if len(in.Currency) != 3 {
		return in, invalid("currency", "must be a 3 letter code")
	}
	return in, nil
}

// Create records a CONFIRMED booking and occupies its days.  It fails with
// a *ConflictError listing the taken days when any day of [start, end) is
// booked or blocked, including when a concurrent request wins the race.
func (m *LifecycleManager) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	in, err := m.validateCreate(in)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	ref := in.PaymentRef
	b := &model.Booking{
		BookingNumber:    m.newNumber(now),
		VehicleID:        in.VehicleID,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		Status:           model.StatusConfirmed,
		PaymentStatus:    model.PaymentPaid,
		PaymentRef:       &ref,
		CustomerName:     in.CustomerName,
		CustomerEmail:    in.CustomerEmail,
		CustomerPhone:    in.CustomerPhone,
		TotalAmountCents: in.TotalAmountCents,
		Currency:         in.Currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry := m.log.WithFields(log.Fields{
		"vehicle_id": b.VehicleID,
		"start_date": utils.FormatDay(b.StartDate),
		"end_date":   utils.FormatDay(b.EndDate),
	})

	err = runTx(ctx, m.db, m.txTimeout, b.VehicleID, func(ctx context.Context, tx *sql.Tx) error {
		avail, err := m.resolver.CheckTx(ctx, tx, b.VehicleID, b.StartDate, b.EndDate)
		if err != nil {
			return err
		}
		if !avail.Available {
			return &ConflictError{VehicleID: b.VehicleID, Dates: avail.ConflictingDates}
		}
		if err := m.bookings.CreateTx(ctx, tx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &ConflictError{VehicleID: b.VehicleID}
			}
			// a duplicate booking_number is not a date conflict
			return storage("insert booking", err)
		}
		if _, err := m.days.DeleteOpenTx(ctx, tx, b.VehicleID, b.StartDate, b.EndDate); err != nil {
			return writeErr("clear open days", b.VehicleID, err)
		}
		if err := m.days.InsertDaysTx(ctx, tx, occupancyRows(b, now)); err != nil {
			return writeErr("occupy days", b.VehicleID, err)
		}
		return nil
	})
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			if len(ce.Dates) == 0 {
				// lost at write time; report what the winner took
				if avail, cerr := m.resolver.Check(ctx, b.VehicleID, b.StartDate, b.EndDate); cerr == nil {
					ce.Dates = avail.ConflictingDates
				}
				if len(ce.Dates) == 0 {
					entry.WithError(ce).Warn("write conflict but no unavailable day found on re-read")
				}
			}
			entry.WithField("conflicting_dates", ce.DateStrings()).Info("booking rejected: dates unavailable")
			return nil, err
		}
		entry.WithError(err).Error("create booking failed")
		return nil, err
	}

	entry.WithFields(log.Fields{"booking_id": b.ID, "booking_number": b.BookingNumber}).Info("booking confirmed")
	m.afterCommit(ctx, queue.EventBookingConfirmed, b, "")
	return b, nil
}

func occupancyRows(b *model.Booking, now time.Time) []model.AvailabilityDay {
	days := utils.EachDay(b.StartDate, b.EndDate)
	rows := make([]model.AvailabilityDay, 0, len(days))
	for _, d := range days {
		owner := b.ID
		rows = append(rows, model.AvailabilityDay{
			VehicleID:   b.VehicleID,
			Day:         d,
			IsAvailable: false,
			Reason:      model.ReasonBooked,
			BookingID:   &owner,
			CreatedAt:   now,
		})
	}
	return rows
}

// Cancel marks a booking CANCELLED and frees the days it occupied.  Manual
// blocks on the same days are untouched.  Cancelling an already cancelled
// booking returns it unchanged.
func (m *LifecycleManager) Cancel(ctx context.Context, id uint64) (*model.Booking, error) {
	var (
		b        *model.Booking
		previous model.BookingStatus
		freed    int64
	)
	err := runTx(ctx, m.db, m.txTimeout, "", func(ctx context.Context, tx *sql.Tx) error {
		cur, err := m.load(ctx, tx, id)
		if err != nil {
			return err
		}
		b = cur
		if cur.Status == model.StatusCancelled {
			return nil
		}
		if !cur.Status.CanTransitionTo(model.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, model.StatusCancelled)
		}
		now := m.now().UTC()
		if err := m.bookings.UpdateStatusTx(ctx, tx, id, model.StatusCancelled, &now, now); err != nil {
			return writeErr("cancel booking", cur.VehicleID, err)
		}
		if freed, err = m.days.DeleteByBookingTx(ctx, tx, id); err != nil {
			return writeErr("free days", cur.VehicleID, err)
		}
		previous = cur.Status
		b.Status = model.StatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		m.log.WithError(err).WithField("booking_id", id).Warn("cancel booking failed")
		return nil, err
	}
	if previous == "" {
		return b, nil
	}
	m.log.WithFields(log.Fields{
		"booking_id":  b.ID,
		"vehicle_id":  b.VehicleID,
		"days_freed":  freed,
		"prev_status": previous,
	}).Info("booking cancelled")
	m.afterCommit(ctx, queue.EventBookingCancelled, b, previous)
	return b, nil
}

// UpdateStatus moves a booking along the status graph.  CANCELLED is
// delegated to Cancel so that occupied days are always released.  Setting
// the current status again is a no-op.
func (m *LifecycleManager) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) (*model.Booking, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	if status == model.StatusCancelled {
		return m.Cancel(ctx, id)
	}
	var (
		b        *model.Booking
		previous model.BookingStatus
	)
	err := runTx(ctx, m.db, m.txTimeout, "", func(ctx context.Context, tx *sql.Tx) error {
		cur, err := m.load(ctx, tx, id)
		if err != nil {
			return err
		}
		b = cur
		if cur.Status == status {
			return nil
		}
		if cur.Status.Terminal() {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, cur.Status)
		}
		if !cur.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, status)
		}
		now := m.now().UTC()
		if err := m.bookings.UpdateStatusTx(ctx, tx, id, status, nil, now); err != nil {
			return writeErr("update booking status", cur.VehicleID, err)
		}
		previous = cur.Status
		b.Status = status
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		m.log.WithError(err).WithFields(log.Fields{"booking_id": id, "status": status}).Warn("update booking status failed")
		return nil, err
	}
	if previous == "" {
		return b, nil
	}
	m.log.WithFields(log.Fields{"booking_id": id, "from": previous, "to": status}).Info("booking status changed")
	m.afterCommit(ctx, queue.EventBookingStatusChanged, b, previous)
	return b, nil
}

func (m *LifecycleManager) load(ctx context.Context, tx repository.Querier, id uint64) (*model.Booking, error) {
	b, err := m.bookings.GetByIDTx(ctx, tx, id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storage("load booking", err)
	}
	return b, nil
}

// Get returns a booking by ID.
func (m *LifecycleManager) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return m.load(ctx, m.db, id)
}

// GetByNumber returns a booking by its booking number.
func (m *LifecycleManager) GetByNumber(ctx context.Context, number string) (*model.Booking, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, invalid("bookingNumber", "is required")
	}
	b, err := m.bookings.GetByNumber(ctx, number)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, fmt.Errorf("booking %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, storage("load booking", err)
	}
	return b, nil
}

// ListByVehicle returns every booking of a vehicle, cancelled ones included.
func (m *LifecycleManager) ListByVehicle(ctx context.Context, vehicleID string) ([]model.Booking, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, invalid("vehicleId", "is required")
	}
	bookings, err := m.bookings.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, storage("list bookings", err)
	}
	return bookings, nil
}

// afterCommit runs best-effort side effects.  Their failure never undoes
// the committed booking.
func (m *LifecycleManager) afterCommit(ctx context.Context, typ string, b *model.Booking, previous model.BookingStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()
	entry := m.log.WithFields(log.Fields{"booking_id": b.ID, "vehicle_id": b.VehicleID})
	if m.cache != nil {
		if err := m.cache.InvalidateVehicle(ctx, b.VehicleID); err != nil {
			entry.WithError(err).Warn("availability cache invalidation failed")
		}
	}
	if m.events != nil {
		if err := m.events.Publish(ctx, newBookingEvent(typ, b, previous, m.now())); err != nil {
			entry.WithError(err).WithField("event", typ).Warn("publish booking event failed")
		}
	}
}
