package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/car-rental-availability/internal/database"
	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/queue"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

func day(s string) time.Time {
	d, err := utils.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func days(ss ...string) []time.Time {
	out := make([]time.Time, 0, len(ss))
	for _, s := range ss {
		out = append(out, day(s))
	}
	return out
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) events() []queue.BookingEvent {
	var out []queue.BookingEvent
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(queue.BookingEvent))
	}
	return out
}

type recordingInvalidator struct {
	mu       sync.Mutex
	vehicles []string
}

func (r *recordingInvalidator) InvalidateVehicle(_ context.Context, vehicleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles = append(r.vehicles, vehicleID)
	return nil
}

var fixedNow = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	path      string
	db        *sql.DB
	bookings  *repository.BookingRepo
	days      *repository.AvailabilityRepo
	resolver  *Resolver
	projector *Projector
	lm        *LifecycleManager
	blocks    *BlockManager
	events    *mockPublisher
	cache     *recordingInvalidator
}

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, database.DriverSQLite))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rental.db")
	db := openTestDB(t, path)
	f := &fixture{
		path:     path,
		db:       db,
		bookings: repository.NewBookingRepo(db),
		days:     repository.NewAvailabilityRepo(db),
		events:   &mockPublisher{},
		cache:    &recordingInvalidator{},
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.resolver = NewResolver(f.bookings, f.days)
	f.projector = NewProjector(f.bookings, f.days)
	f.projector.Now = func() time.Time { return fixedNow }
	f.lm = NewLifecycleManager(db, f.bookings, f.days, f.resolver,
		WithEvents(f.events),
		WithInvalidator(f.cache),
		WithClock(func() time.Time { return fixedNow }),
		WithTxTimeout(5*time.Second),
	)
	f.blocks = NewBlockManager(db, f.days, f.cache, nil)
	f.blocks.now = func() time.Time { return fixedNow }
	return f
}

func input(vehicleID, start, end string) CreateBookingInput {
	return CreateBookingInput{
		VehicleID:        vehicleID,
		StartDate:        day(start),
		EndDate:          day(end),
		CustomerName:     "Ada Lovelace",
		CustomerEmail:    "ada@example.com",
		PaymentRef:       "pi_" + start,
		TotalAmountCents: 15000,
		Currency:         "eur",
	}
}

func (f *fixture) book(t *testing.T, vehicleID, start, end string) *model.Booking {
	t.Helper()
	b, err := f.lm.Create(context.Background(), input(vehicleID, start, end))
	require.NoError(t, err)
	return b
}

// ownedDays returns the occupancy rows of a booking.
func (f *fixture) ownedDays(t *testing.T, bookingID uint64) []model.AvailabilityDay {
	t.Helper()
	rows, err := f.days.ListByBookingTx(context.Background(), f.db, bookingID)
	require.NoError(t, err)
	return rows
}
