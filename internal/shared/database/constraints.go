package database

import (
	"fmt"

	"gorm.io/gorm"
)

// constraints back the ledger's invariants in the schema itself, so a bug
// in a conditional update cannot leave a seat in an impossible state.
var constraints = []struct {
	table string
	name  string
	check string
}{
	{
		table: "seats",
		name:  "chk_seats_status",
		check: "status IN ('available', 'selected', 'locked', 'booked')",
	},
	{
		// A locked seat has a holder and a deadline; no other status has either
		table: "seats",
		name:  "chk_seats_lock_fields",
		check: "(status = 'locked' AND holder_id IS NOT NULL AND locked_until IS NOT NULL) OR (status <> 'locked' AND holder_id IS NULL AND locked_until IS NULL)",
	},
	{
		table: "bookings",
		name:  "chk_bookings_amounts",
		check: "final_amount >= 0 AND subtotal >= 0 AND (refund_amount IS NULL OR refund_amount <= final_amount)",
	},
	{
		table: "events",
		name:  "chk_events_revenue",
		check: "total_revenue >= 0",
	},
}

var indexes = []string{
	// ListExpiredPending scans this
	`CREATE INDEX IF NOT EXISTS idx_bookings_pending_expiry ON bookings (expires_at) WHERE status = 'pending'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_booking_seats_position ON booking_seats (booking_id, position)`,
}

// MigrateConstraints adds the CHECK constraints and partial indexes that
// AutoMigrate cannot express. It is safe to run repeatedly.
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range constraints {
		stmt := fmt.Sprintf(`DO $$ BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.name, c.table, c.name, c.check)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
