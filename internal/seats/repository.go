package seats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSeatNotFound = errors.New("seat not found")
	ErrStaleSeat    = errors.New("seat changed since it was read")
	ErrSeatState    = errors.New("inconsistent seat state")
)

// StaleSeatError reports the seat whose conditional update matched no row.
type StaleSeatError struct {
	SeatID     uuid.UUID
	SeatNumber string
}

func (e *StaleSeatError) Error() string {
	return fmt.Sprintf("seat %s (%s): %v", e.SeatNumber, e.SeatID, ErrStaleSeat)
}

func (e *StaleSeatError) Is(target error) bool {
	return target == ErrStaleSeat
}

type Repository interface {
	CreateSeats(ctx context.Context, seats []Seat) error
	GetSeat(ctx context.Context, eventID, seatID uuid.UUID) (*Seat, error)
	GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)
	ListSeats(ctx context.Context, eventID uuid.UUID) ([]Seat, error)

	// ConditionalUpdateSeats applies every transition or none. A seat that
	// no longer matches its expectation fails the batch with a
	// *StaleSeatError. The event's available seat count is refreshed in the
	// same unit of work.
	ConditionalUpdateSeats(ctx context.Context, eventID uuid.UUID, transitions []Transition) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&seats, 500).Error
}

func (r *repository) GetSeat(ctx context.Context, eventID, seatID uuid.UUID) (*Seat, error) {
	var seat Seat
	err := r.db.WithContext(ctx).First(&seat, "id = ? AND event_id = ?", seatID, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &seat, nil
}

func (r *repository) GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	if len(seatIDs) == 0 {
		return seats, nil
	}
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND id IN ?", eventID, seatIDs).
		Find(&seats).Error
	return seats, err
}

func (r *repository) ListSeats(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("row ASC, position ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) ConditionalUpdateSeats(ctx context.Context, eventID uuid.UUID, transitions []Transition) error {
	if len(transitions) == 0 {
		return nil
	}
	for _, t := range transitions {
		if !t.Next.Consistent() {
			return fmt.Errorf("seat %s to %s: %w", t.SeatNumber, t.Next.Status, ErrSeatState)
		}
	}
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range transitions {
			q := tx.Model(&Seat{}).
				Where("id = ? AND event_id = ? AND status = ?", t.SeatID, eventID, t.Expect.Status)
			if t.Expect.HolderID != nil {
				q = q.Where("holder_id = ?", *t.Expect.HolderID)
			} else {
				q = q.Where("holder_id IS NULL")
			}
			if t.Expect.ExpiredBy != nil {
				q = q.Where("(locked_until IS NULL OR locked_until <= ?)", *t.Expect.ExpiredBy)
			}

			res := q.Updates(map[string]interface{}{
				"status":       t.Next.Status,
				"holder_id":    t.Next.HolderID,
				"locked_until": t.Next.LockedUntil,
				"updated_at":   now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return &StaleSeatError{SeatID: t.SeatID, SeatNumber: t.SeatNumber}
			}
		}

		// events owns the column; seats only refreshes the derived count.
		return tx.Exec(`UPDATE events SET available_seats = (
				SELECT COUNT(*) FROM seats WHERE event_id = ? AND status IN (?, ?)
			), updated_at = ? WHERE id = ?`,
			eventID, StatusAvailable, StatusSelected, now, eventID).Error
	})
}
