package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/repository"
)

// runTx executes fn inside a serializable transaction bounded by timeout.
// fn must use the context and transaction it is given.  Errors returned by
// fn are passed through unchanged; the transaction is rolled back unless
// it committed.
func runTx(ctx context.Context, db *sql.DB, timeout time.Duration, vehicleID string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return storage("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if repository.IsDuplicate(err) || repository.IsSerializationFailure(err) {
			return &ConflictError{VehicleID: vehicleID}
		}
		return storage("commit", err)
	}
	committed = true
	return nil
}

// writeErr classifies a repository write failure.  Unique key collisions
// and deadlocks mean another writer took the days first.
func writeErr(op, vehicleID string, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return &ConflictError{VehicleID: vehicleID}
	}
	return storage(op, err)
}
