package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"eventix/internal/seats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventStateChanged = errors.New("event status changed concurrently")
	ErrCounterUnderflow  = errors.New("event counters would become negative")
	ErrEventHasBookings  = errors.New("event has bookings")
)

type Repository interface {
	// CreateEvent stores the event and its generated seats together.
	CreateEvent(ctx context.Context, event *Event, eventSeats []seats.Seat) error
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListEvents(ctx context.Context, query EventListQuery) ([]Event, int64, error)
	// UpdateEventStatus moves the event from one status to another, failing
	// with ErrEventStateChanged if it is no longer in from.
	UpdateEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus) error
	// IncrementEventCounters adds the deltas atomically. Negative deltas undo
	// an earlier increment.
	IncrementEventCounters(ctx context.Context, id uuid.UUID, bookings int, revenue decimal.Decimal) error
	// UpdateEvent stores the editable fields of event if it is still in
	// status expect. Each entry of reprice sets the price of every seat of
	// that type in the same transaction.
	UpdateEvent(ctx context.Context, event *Event, expect EventStatus, reprice seats.PriceTable) error
	// DeleteEvent removes the event and its seats, failing with
	// ErrEventHasBookings if any booking references it.
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateEvent(ctx context.Context, event *Event, eventSeats []seats.Seat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event.AvailableSeats = len(eventSeats)
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		if len(eventSeats) == 0 {
			return nil
		}
		return tx.CreateInBatches(&eventSeats, 500).Error
	})
}

func (r *repository) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListEvents(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	var events []Event
	var totalCount int64

	query.Normalize()
	db := r.db.WithContext(ctx).Model(&Event{})

	if query.Search != "" {
		searchTerm := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(venue_name) LIKE ?",
			searchTerm, searchTerm, searchTerm)
	}
	if query.Category != "" {
		db = db.Where("LOWER(category) = ?", strings.ToLower(query.Category))
	}
	if query.City != "" {
		db = db.Where("LOWER(venue_city) = ?", strings.ToLower(query.City))
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	// Date filters
	if query.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", query.DateFrom); err == nil {
			db = db.Where("date >= ?", dateFrom)
		}
	}
	if query.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", query.DateTo); err == nil {
			// Include the entire day
			db = db.Where("date < ?", dateTo.Add(24*time.Hour))
		}
	}

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := db.Order("date ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&events).Error

	return events, totalCount, err
}

func (r *repository) UpdateEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus) error {
	res := r.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetEvent(ctx, id); err != nil {
			return err
		}
		return ErrEventStateChanged
	}
	return nil
}

func (r *repository) IncrementEventCounters(ctx context.Context, id uuid.UUID, bookings int, revenue decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND total_bookings + ? >= 0 AND total_revenue + ? >= 0", id, bookings, revenue).
		Updates(map[string]interface{}{
			"total_bookings": gorm.Expr("total_bookings + ?", bookings),
			"total_revenue":  gorm.Expr("total_revenue + ?", revenue),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetEvent(ctx, id); err != nil {
			return err
		}
		return ErrCounterUnderflow
	}
	return nil
}

func (r *repository) UpdateEvent(ctx context.Context, event *Event, expect EventStatus, reprice seats.PriceTable) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Event{}).
			Where("id = ? AND status = ?", event.ID, expect).
			Updates(map[string]interface{}{
				"title":                event.Title,
				"description":          event.Description,
				"category":             event.Category,
				"venue_name":           event.Venue.Name,
				"venue_address":        event.Venue.Address,
				"venue_city":           event.Venue.City,
				"venue_country":        event.Venue.Country,
				"date":                 event.Date,
				"pricing":              event.Pricing,
				"max_booking_per_user": event.MaxBookingPerUser,
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := eventExists(tx, event.ID); err != nil {
				return err
			}
			return ErrEventStateChanged
		}

		for seatType, price := range reprice {
			err := tx.Model(&seats.Seat{}).
				Where("event_id = ? AND type = ?", event.ID, seatType).
				Updates(map[string]interface{}{"price": price, "updated_at": now}).Error
			if err != nil {
				return err
			}
		}
		event.UpdatedAt = now
		return nil
	})
}

func (r *repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&event).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		var booked int64
		if err := tx.Table("bookings").Where("event_id = ?", id).Count(&booked).Error; err != nil {
			return err
		}
		if booked > 0 {
			return ErrEventHasBookings
		}

		if err := tx.Where("event_id = ?", id).Delete(&seats.Seat{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Event{}).Error
	})
}

func eventExists(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&Event{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
