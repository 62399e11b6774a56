package database

import (
	"fmt"

	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/seats"
	"eventix/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&users.User{},
		&events.Event{},
		&seats.Seat{},
		&bookings.Booking{},
		&bookings.BookedSeat{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return MigrateConstraints(db)
}
