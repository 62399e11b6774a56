package bookings

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrDuplicateReference  = errors.New("booking reference already exists")
	ErrBookingStateChanged = errors.New("booking changed since it was read")
)

type Repository interface {
	// CreateBooking stores the booking with its seat snapshots. A taken
	// reference fails with ErrDuplicateReference.
	CreateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindBookingByReference(ctx context.Context, reference string) (*Booking, error)

	// UpdateBooking applies patch only while the booking still matches
	// expect, failing with ErrBookingStateChanged otherwise.
	UpdateBooking(ctx context.Context, id uuid.UUID, expect Expectation, patch Patch) error

	ListBookings(ctx context.Context, query BookingListQuery) ([]Booking, int64, error)
	// ListExpiredPending returns pending bookings whose expiry is at or before now.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]Booking, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBooking(ctx context.Context, booking *Booking) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range booking.Seats {
			if booking.Seats[i].ID == uuid.Nil {
				booking.Seats[i].ID = uuid.New()
			}
			booking.Seats[i].BookingID = booking.ID
		}
		return tx.Create(booking).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReference
	}
	return err
}

func (r *repository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindBookingByReference(ctx context.Context, reference string) (*Booking, error) {
	return r.first(ctx, "booking_reference = ?", reference)
}

func (r *repository) first(ctx context.Context, cond string, arg interface{}) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(cond, arg).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) UpdateBooking(ctx context.Context, id uuid.UUID, expect Expectation, patch Patch) error {
	cols := patch.Columns()
	cols["updated_at"] = time.Now().UTC()

	q := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND status = ?", id, expect.Status)
	if expect.CheckedIn != nil {
		q = q.Where("checked_in = ?", *expect.CheckedIn)
	}

	res := q.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Booking{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrBookingNotFound
		}
		return ErrBookingStateChanged
	}
	return nil
}

func (r *repository) ListBookings(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	query.Normalize()
	baseQuery := r.applyFilters(r.db.WithContext(ctx).Model(&Booking{}), query)

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// applyFilters applies query filters to the GORM query
func (r *repository) applyFilters(query *gorm.DB, filters BookingListQuery) *gorm.DB {
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.EventID != "" {
		if eventID, err := uuid.Parse(filters.EventID); err == nil {
			query = query.Where("event_id = ?", eventID)
		}
	}

	if dateFrom, ok := parseDay(filters.DateFrom); ok {
		query = query.Where("created_at >= ?", dateFrom)
	}
	if dateTo, ok := parseDay(filters.DateTo); ok {
		// Include the entire day
		query = query.Where("created_at < ?", dateTo.Add(24*time.Hour))
	}

	return query
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	return t, err == nil
}

// CalculateTotalPages returns the page count for a listing.
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}

// Matches reports whether b passes the query filters. Stores that cannot
// express the filters in a query language use it directly.
func (q BookingListQuery) Matches(b *Booking) bool {
	if q.UserID != nil && b.UserID != *q.UserID {
		return false
	}
	if q.Status != "" && string(b.Status) != q.Status {
		return false
	}
	if q.EventID != "" {
		if eventID, err := uuid.Parse(q.EventID); err == nil && b.EventID != eventID {
			return false
		}
	}
	if dateFrom, ok := parseDay(q.DateFrom); ok && b.CreatedAt.Before(dateFrom) {
		return false
	}
	if dateTo, ok := parseDay(q.DateTo); ok && !b.CreatedAt.Before(dateTo.Add(24*time.Hour)) {
		return false
	}
	return true
}
