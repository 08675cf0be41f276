package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/model"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// maxBlockDays bounds a single manual block request.
const maxBlockDays = 366

// BlockInput describes a manual block placed by an administrator.
type BlockInput struct {
	VehicleID string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	Note      string
}

// BlockManager maintains manual blocks.  Manual rows never carry a booking
// owner, and booking-owned rows are never touched here.
type BlockManager struct {
	db        *sql.DB
	days      *repository.AvailabilityRepo
	cache     AvailabilityInvalidator
	log       log.FieldLogger
	txTimeout time.Duration
	now       func() time.Time
}

// NewBlockManager wires a BlockManager.  cache and logger may be nil.
func NewBlockManager(db *sql.DB, days *repository.AvailabilityRepo, cache AvailabilityInvalidator, logger log.FieldLogger) *BlockManager {
	if db == nil || days == nil {
		panic("nil dependency passed to NewBlockManager")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &BlockManager{db: db, days: days, cache: cache, log: logger, txTimeout: DefaultTxTimeout, now: time.Now}
}

func normalizeReason(r string) (string, error) {
	r = strings.ToUpper(strings.TrimSpace(r))
	switch r {
	case "":
		return model.ReasonBlocked, nil
	case model.ReasonBlocked, model.ReasonMaintenance:
		return r, nil
	}
	return "", invalid("reason", "must be %s or %s", model.ReasonMaintenance, model.ReasonBlocked)
}

// Block marks [start, end) unavailable.  It replaces earlier manual rows
// in the range and fails with a *ConflictError when a booking already
// occupies any of the days.
func (m *BlockManager) Block(ctx context.Context, in BlockInput) ([]model.AvailabilityDay, error) {
	vehicleID, start, end, err := validateRange(in.VehicleID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if utils.NightsBetween(start, end) > maxBlockDays {
		return nil, invalid("endDate", "block must not exceed %d days", maxBlockDays)
	}
	reason, err := normalizeReason(in.Reason)
	if err != nil {
		return nil, err
	}
	var note *string
	if n := strings.TrimSpace(in.Note); n != "" {
		if len(n) > 255 {
			return nil, invalid("note", "must be at most 255 characters")
		}
		note = &n
	}

	now := m.now().UTC()
	rows := make([]model.AvailabilityDay, 0, utils.NightsBetween(start, end))
	for _, d := range utils.EachDay(start, end) {
		rows = append(rows, model.AvailabilityDay{
			VehicleID:   vehicleID,
			Day:         d,
			IsAvailable: false,
			Reason:      reason,
			Note:        note,
			CreatedAt:   now,
		})
	}

	err = runTx(ctx, m.db, m.txTimeout, vehicleID, func(ctx context.Context, tx *sql.Tx) error {
		owned, err := m.days.ListOwnedTx(ctx, tx, vehicleID, start, end)
		if err != nil {
			return storage("load booked days", err)
		}
		if len(owned) > 0 {
			dates := make([]time.Time, 0, len(owned))
			for _, d := range owned {
				dates = append(dates, d.Day)
			}
			return &ConflictError{VehicleID: vehicleID, Dates: dates}
		}
		if _, err := m.days.DeleteManualTx(ctx, tx, vehicleID, start, end); err != nil {
			return writeErr("replace manual days", vehicleID, err)
		}
		if err := m.days.InsertDaysTx(ctx, tx, rows); err != nil {
			return writeErr("block days", vehicleID, err)
		}
		return nil
	})
	entry := m.log.WithFields(log.Fields{
		"vehicle_id": vehicleID,
		"start_date": utils.FormatDay(start),
		"end_date":   utils.FormatDay(end),
		"reason":     reason,
	})
	if err != nil {
		entry.WithError(err).Warn("block days failed")
		return nil, err
	}
	entry.Info("days blocked")
	m.invalidate(ctx, vehicleID)
	return rows, nil
}

// Unblock removes manual rows in [start, end) and reports how many were
// removed.  Days taken by bookings stay taken.
func (m *BlockManager) Unblock(ctx context.Context, vehicleID string, start, end time.Time) (int64, error) {
	vehicleID, start, end, err := validateRange(vehicleID, start, end)
	if err != nil {
		return 0, err
	}
	var n int64
	err = runTx(ctx, m.db, m.txTimeout, vehicleID, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if n, err = m.days.DeleteManualTx(ctx, tx, vehicleID, start, end); err != nil {
			return writeErr("unblock days", vehicleID, err)
		}
		return nil
	})
	if err != nil {
		m.log.WithError(err).WithField("vehicle_id", vehicleID).Warn("unblock days failed")
		return 0, err
	}
	m.log.WithFields(log.Fields{"vehicle_id": vehicleID, "removed": n}).Info("days unblocked")
	if n > 0 {
		m.invalidate(ctx, vehicleID)
	}
	return n, nil
}

// List returns the manual rows of a vehicle in [start, end).
func (m *BlockManager) List(ctx context.Context, vehicleID string, start, end time.Time) ([]model.AvailabilityDay, error) {
	vehicleID, start, end, err := validateRange(vehicleID, start, end)
	if err != nil {
		return nil, err
	}
	days, err := m.days.ListManual(ctx, vehicleID, start, end)
	if err != nil {
		return nil, storage("list manual days", err)
	}
	return days, nil
}

func (m *BlockManager) invalidate(ctx context.Context, vehicleID string) {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()
	if err := m.cache.InvalidateVehicle(ctx, vehicleID); err != nil {
		m.log.WithError(err).WithField("vehicle_id", vehicleID).Warn("availability cache invalidation failed")
	}
}
