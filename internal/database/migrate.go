package database

import (
	"database/sql"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// bookingTable describes the bookings table for migration only.  Queries
// are written by hand in the repository package.
type bookingTable struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	BookingNumber    string     `gorm:"size:32;not null;uniqueIndex:ux_bookings_number"`
	VehicleID        string     `gorm:"size:64;not null;index:idx_bookings_vehicle_range,priority:1"`
	StartDate        time.Time  `gorm:"type:date;not null;index:idx_bookings_vehicle_range,priority:2"`
	EndDate          time.Time  `gorm:"type:date;not null;index:idx_bookings_vehicle_range,priority:3"`
	Status           string     `gorm:"size:16;not null;index"`
	PaymentStatus    string     `gorm:"size:24;not null"`
	PaymentRef       *string    `gorm:"size:128"`
	CustomerName     string     `gorm:"size:128;not null"`
	CustomerEmail    string     `gorm:"size:255;not null"`
	CustomerPhone    *string    `gorm:"size:32"`
	TotalAmountCents uint64     `gorm:"not null;default:0"`
	Currency         string     `gorm:"size:3;not null"`
	CancelledAt      *time.Time `gorm:"type:datetime"`
	CreatedAt        time.Time  `gorm:"type:datetime;not null"`
	UpdatedAt        time.Time  `gorm:"type:datetime;not null"`
}

func (bookingTable) TableName() string { return "bookings" }

// availabilityDayTable describes availability_days.  The composite unique
// index on (vehicle_id, day) is what makes two overlapping bookings unable
// to commit together.
type availabilityDayTable struct {
	ID          uint64        `gorm:"primaryKey;autoIncrement"`
	VehicleID   string        `gorm:"size:64;not null;uniqueIndex:ux_availability_vehicle_day,priority:1"`
	Day         time.Time     `gorm:"type:date;not null;uniqueIndex:ux_availability_vehicle_day,priority:2"`
	IsAvailable bool          `gorm:"not null;default:false"`
	Reason      string        `gorm:"size:16;not null"`
	BookingID   *uint64       `gorm:"index:idx_availability_booking"`
	Booking     *bookingTable `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
	Note        *string       `gorm:"size:255"`
	CreatedAt   time.Time     `gorm:"type:datetime;not null"`
}

func (availabilityDayTable) TableName() string { return "availability_days" }

// Migrate creates or updates the schema on an already opened connection.
// driver is DriverMySQL or DriverSQLite.
func Migrate(db *sql.DB, driver string) error {
	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = gormmysql.New(gormmysql.Config{Conn: db})
	case DriverSQLite:
		dialector = &gormsqlite.Dialector{DriverName: DriverSQLite, Conn: db}
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	if err := gdb.AutoMigrate(&bookingTable{}, &availabilityDayTable{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
