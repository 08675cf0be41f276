// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to tell a
// legitimate booking conflict apart from a storage failure.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrConflict is returned when a write collides with an existing
// occupancy row for the same (vehicle, day), or when the database aborts
// the transaction because a concurrent one touched the same rows.  The
// caller should re-run the availability check rather than retry blindly.
var ErrConflict = errors.New("conflict")

// ErrBookingNotFound is returned when no booking matches the lookup.
var ErrBookingNotFound = errors.New("booking not found")

// MySQL server error numbers we classify.
const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// Querier is satisfied by both *sql.DB and *sql.Tx so that read helpers
// can run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsDuplicate reports whether err is a unique-key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint &&
			(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}

// IsSerializationFailure reports whether the database chose this
// transaction as the deadlock victim of a concurrent one.  Lock wait
// timeouts are not included: they are storage failures.
func IsSerializationFailure(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock
	}
	return false
}

// classifyWrite maps driver errors on occupancy writes onto ErrConflict and
// leaves everything else untouched.
func classifyWrite(err error) error {
	if err == nil {
		return nil
	}
	if IsDuplicate(err) || IsSerializationFailure(err) {
		return errors.Join(ErrConflict, err)
	}
	return err
}
