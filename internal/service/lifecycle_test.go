package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/car-rental-availability/internal/database"
	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/queue"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

func TestCreateCancelRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, "car-1", "2025-07-01", "2025-07-04")
	assert.NotZero(t, first.ID)
	assert.Equal(t, model.StatusConfirmed, first.Status)
	assert.Equal(t, model.PaymentPaid, first.PaymentStatus)
	assert.Equal(t, "EUR", first.Currency)
	assert.Regexp(t, `^CR-20250615-[0-9A-F]{8}$`, first.BookingNumber)

	rows := f.ownedDays(t, first.ID)
	require.Len(t, rows, 3)
	for i, want := range days("2025-07-01", "2025-07-02", "2025-07-03") {
		assert.Equal(t, want, rows[i].Day)
		assert.False(t, rows[i].IsAvailable)
		assert.Equal(t, model.ReasonBooked, rows[i].Reason)
	}

	_, err := f.lm.Create(ctx, input("car-1", "2025-07-03", "2025-07-06"))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []string{"2025-07-03"}, ce.DateStrings())

	cancelled, err := f.lm.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Empty(t, f.ownedDays(t, first.ID))

	second, err := f.lm.Create(ctx, input("car-1", "2025-07-03", "2025-07-06"))
	require.NoError(t, err)
	assert.Len(t, f.ownedDays(t, second.ID), 3)

	stored, err := f.lm.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)
}

func TestCreateAdjacentRangesDoNotConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, "car-1", "2025-06-01", "2025-06-05")

	res, err := f.resolver.Check(context.Background(), "car-1", day("2025-06-05"), day("2025-06-08"))
	require.NoError(t, err)
	assert.True(t, res.Available)

	f.book(t, "car-1", "2025-06-05", "2025-06-08")

	res, err = f.resolver.Check(context.Background(), "car-1", day("2025-06-04"), day("2025-06-06"))
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, days("2025-06-04", "2025-06-05"), res.ConflictingDates)
}

func TestCreateOtherVehicleSameDates(t *testing.T) {
	f := newFixture(t)
	f.book(t, "car-1", "2025-07-01", "2025-07-04")
	f.book(t, "car-2", "2025-07-01", "2025-07-04")
}

func TestCreateRejectsManualBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.blocks.Block(ctx, BlockInput{VehicleID: "car-1", StartDate: day("2025-07-02"), EndDate: day("2025-07-03"), Reason: "maintenance"})
	require.NoError(t, err)

	_, err = f.lm.Create(ctx, input("car-1", "2025-07-01", "2025-07-04"))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"2025-07-02"}, ce.DateStrings())

	list, err := f.lm.ListByVehicle(ctx, "car-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		edit  func(in *CreateBookingInput)
		field string
	}{
		{"missing vehicle", func(in *CreateBookingInput) { in.VehicleID = "  " }, "vehicleId"},
		{"end before start", func(in *CreateBookingInput) { in.EndDate = day("2025-06-30") }, "endDate"},
		{"zero nights", func(in *CreateBookingInput) { in.EndDate = in.StartDate }, "endDate"},
		{"too long", func(in *CreateBookingInput) { in.EndDate = day("2026-07-02") }, "endDate"},
		{"missing name", func(in *CreateBookingInput) { in.CustomerName = "" }, "customerName"},
		{"bad email", func(in *CreateBookingInput) { in.CustomerEmail = "not-an-email" }, "customerEmail"},
		{"missing payment", func(in *CreateBookingInput) { in.PaymentRef = "" }, "paymentRef"},
		{"bad currency", func(in *CreateBookingInput) { in.Currency = "EURO" }, "currency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := input("car-1", "2025-07-01", "2025-07-04")
			tc.edit(&in)
			_, err := f.lm.Create(context.Background(), in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
	list, err := f.lm.ListByVehicle(context.Background(), "car-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateConcurrentOverlapOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	// every range contains 2025-09-04
	ranges := [][2]string{
		{"2025-09-01", "2025-09-05"},
		{"2025-09-03", "2025-09-07"},
		{"2025-09-04", "2025-09-05"},
		{"2025-09-02", "2025-09-06"},
		{"2025-09-01", "2025-09-10"},
		{"2025-09-04", "2025-09-08"},
	}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []*model.Booking
		conflicts int
		others    []error
	)
	for _, r := range ranges {
		wg.Add(1)
		go func(start, end string) {
			defer wg.Done()
			b, err := f.lm.Create(context.Background(), input("car-1", start, end))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, b)
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(r[0], r[1])
	}
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, len(ranges)-1, conflicts)

	w := winners[0]
	rows, err := f.days.ListBlocked(context.Background(), "car-1", day("2025-08-01"), day("2025-10-01"))
	require.NoError(t, err)
	assert.Len(t, rows, utils.NightsBetween(w.StartDate, w.EndDate))
	for _, row := range rows {
		require.NotNil(t, row.BookingID)
		assert.Equal(t, w.ID, *row.BookingID)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-1", "2025-07-01", "2025-07-04")

	first, err := f.lm.Cancel(ctx, b.ID)
	require.NoError(t, err)
	second, err := f.lm.Cancel(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, second.Status)
	assert.Equal(t, first.CancelledAt.Unix(), second.CancelledAt.Unix())
	f.events.AssertNumberOfCalls(t, "Publish", 2)
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.lm.Cancel(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.lm.UpdateStatus(context.Background(), 999, model.StatusInProgress)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelKeepsManualBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-1", "2025-08-01", "2025-08-04")

	_, err := f.blocks.Block(ctx, BlockInput{VehicleID: "car-1", StartDate: day("2025-08-03"), EndDate: day("2025-08-06")})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"2025-08-03"}, ce.DateStrings())

	_, err = f.blocks.Block(ctx, BlockInput{VehicleID: "car-1", StartDate: day("2025-08-04"), EndDate: day("2025-08-06"), Reason: model.ReasonMaintenance})
	require.NoError(t, err)

	_, err = f.lm.Cancel(ctx, b.ID)
	require.NoError(t, err)

	res, err := f.resolver.Check(ctx, "car-1", day("2025-08-01"), day("2025-08-07"))
	require.NoError(t, err)
	assert.Equal(t, days("2025-08-04", "2025-08-05"), res.ConflictingDates)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-1", "2025-07-01", "2025-07-04")

	got, err := f.lm.UpdateStatus(ctx, b.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	got, err = f.lm.UpdateStatus(ctx, b.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	_, err = f.lm.UpdateStatus(ctx, b.ID, model.StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.lm.UpdateStatus(ctx, b.ID, model.StatusCompleted)
	require.NoError(t, err)

	_, err = f.lm.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// completed rentals keep their days
	assert.Len(t, f.ownedDays(t, b.ID), 3)
	res, err := f.resolver.Check(ctx, "car-1", day("2025-07-02"), day("2025-07-03"))
	require.NoError(t, err)
	assert.False(t, res.Available)

	_, err = f.lm.UpdateStatus(ctx, b.ID, model.BookingStatus("LOST"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusCancelledFreesDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-1", "2025-07-01", "2025-07-04")

	got, err := f.lm.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Empty(t, f.ownedDays(t, b.ID))
}

func TestLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-7", "2025-07-01", "2025-07-04")
	_, err := f.lm.UpdateStatus(ctx, b.ID, model.StatusNoShow)
	require.NoError(t, err)

	evs := f.events.events()
	require.Len(t, evs, 2)
	assert.Equal(t, queue.EventBookingConfirmed, evs[0].Type)
	assert.Equal(t, b.BookingNumber, evs[0].BookingNumber)
	assert.Equal(t, "2025-07-01", evs[0].StartDate)
	assert.Equal(t, "2025-07-04", evs[0].EndDate)
	assert.NotEmpty(t, evs[0].MessageID)
	assert.Empty(t, evs[0].PreviousStatus)

	assert.Equal(t, queue.EventBookingStatusChanged, evs[1].Type)
	assert.Equal(t, string(model.StatusNoShow), evs[1].Status)
	assert.Equal(t, string(model.StatusConfirmed), evs[1].PreviousStatus)

	assert.Equal(t, []string{"car-7", "car-7"}, f.cache.vehicles)
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	failing := &mockPublisher{}
	failing.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	f.lm.events = failing

	b, err := f.lm.Create(context.Background(), input("car-1", "2025-07-01", "2025-07-04"))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	failing.AssertExpectations(t)
}

func TestLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, "car-1", "2025-07-01", "2025-07-04")
	b := f.book(t, "car-1", "2025-08-01", "2025-08-02")
	_, err := f.lm.Cancel(ctx, a.ID)
	require.NoError(t, err)

	got, err := f.lm.GetByNumber(ctx, b.BookingNumber)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.CustomerEmail)

	_, err = f.lm.GetByNumber(ctx, "CR-00000000-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.lm.ListByVehicle(ctx, "car-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, model.StatusCancelled, list[1].Status)
}

func TestStorageFailureIsNotAvailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Close())

	res, err := f.resolver.Check(context.Background(), "car-1", day("2025-07-01"), day("2025-07-04"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, res.Available)

	_, err = f.lm.Create(context.Background(), input("car-1", "2025-07-01", "2025-07-04"))
	assert.ErrorIs(t, err, ErrStorage)
}

func TestUpdateStatusInProgressToNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "car-1", "2025-07-01", "2025-07-04")

	_, err := f.lm.UpdateStatus(ctx, b.ID, model.StatusInProgress)
	require.NoError(t, err)
	got, err := f.lm.UpdateStatus(ctx, b.ID, model.StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, got.Status)

	// terminal from here on, and the days stay taken
	_, err = f.lm.UpdateStatus(ctx, b.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, f.ownedDays(t, b.ID), 3)
}

// A row the resolver does not count as blocked still holds the unique
// (vehicle_id, day) key, so the day insert fails after the booking insert.
func TestCreateWriteConflictRollsBackBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	f.lm.log = logger
	owner := f.book(t, "car-2", "2025-07-01", "2025-07-02")
	require.NoError(t, f.days.InsertDaysTx(ctx, f.db, []model.AvailabilityDay{{
		VehicleID:   "car-1",
		Day:         day("2025-07-02"),
		IsAvailable: true,
		Reason:      model.ReasonBooked,
		BookingID:   &owner.ID,
		CreatedAt:   fixedNow,
	}}))

	pre, err := f.resolver.Check(ctx, "car-1", day("2025-07-01"), day("2025-07-04"))
	require.NoError(t, err)
	require.True(t, pre.Available)

	_, err = f.lm.Create(ctx, input("car-1", "2025-07-01", "2025-07-04"))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "car-1", ce.VehicleID)
	assert.Empty(t, ce.Dates)
	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Message == "write conflict but no unavailable day found on re-read" {
			warned = true
		}
	}
	assert.True(t, warned)

	list, err := f.lm.ListByVehicle(ctx, "car-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	owned, err := f.days.ListOwnedTx(ctx, f.db, "car-1", day("2025-07-01"), day("2025-07-04"))
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, owner.ID, *owned[0].BookingID)
}

// Two handles on one database file behave like two service instances: each
// has its own connection, so the creates really run at the same time.
func TestCreateRaceAcrossHandlesOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := database.OpenSQLite(f.path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	otherBookings := repository.NewBookingRepo(other)
	otherDays := repository.NewAvailabilityRepo(other)
	peer := NewLifecycleManager(other, otherBookings, otherDays, NewResolver(otherBookings, otherDays),
		WithClock(func() time.Time { return fixedNow }),
		WithTxTimeout(10*time.Second),
	)
	managers := []*LifecycleManager{f.lm, peer}

	const rounds = 15
	for i := 0; i < rounds; i++ {
		start := day("2025-08-01").AddDate(0, 0, i*4)
		in := input("car-race", utils.FormatDay(start), utils.FormatDay(start.AddDate(0, 0, 3)))

		var wg sync.WaitGroup
		errs := make([]error, len(managers))
		for j, m := range managers {
			j, m := j, m
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[j] = m.Create(ctx, in)
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			var ce *ConflictError
			require.ErrorAsf(t, err, &ce, "round %d", i)
		}
		assert.Equalf(t, 1, wins, "round %d", i)
	}

	list, err := f.lm.ListByVehicle(ctx, "car-race")
	require.NoError(t, err)
	assert.Len(t, list, rounds)
}
