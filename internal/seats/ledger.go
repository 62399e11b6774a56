package seats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventix/internal/shared/apperr"

	"github.com/google/uuid"
)

const defaultLedgerAttempts = 3

// Ledger owns every seat state transition. Each operation is an
// all-or-nothing batch: it reads the seats, plans the transitions against
// that snapshot and applies them conditionally. When another writer got in
// between, the batch is re-planned from a fresh read.
type Ledger struct {
	repo        Repository
	now         func() time.Time
	maxAttempts int
	onChange    []func(ctx context.Context, eventID uuid.UUID)
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithOnChange registers a hook run after every batch that changed seats.
func WithOnChange(fn func(ctx context.Context, eventID uuid.UUID)) LedgerOption {
	return func(l *Ledger) { l.onChange = append(l.onChange, fn) }
}

func NewLedger(repo Repository, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:        repo,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		maxAttempts: defaultLedgerAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type planFunc func(snapshot []Seat, now time.Time) ([]Transition, error)

// Lock holds the seats for holder until now+ttl. Re-locking seats the holder
// already owns extends the hold.
func (l *Ledger) Lock(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, holder uuid.UUID, ttl time.Duration) ([]Seat, error) {
	if ttl <= 0 {
		return nil, apperr.Validation("lock ttl must be positive")
	}
	if holder == uuid.Nil {
		return nil, apperr.Validation("holder is required")
	}
	return l.apply(ctx, eventID, seatIDs, func(snapshot []Seat, now time.Time) ([]Transition, error) {
		return planLock(snapshot, holder, now, now.Add(ttl))
	})
}

// Release makes the seats available regardless of their current state.
func (l *Ledger) Release(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	return l.apply(ctx, eventID, seatIDs, func(snapshot []Seat, now time.Time) ([]Transition, error) {
		return planRelease(snapshot, now), nil
	})
}

// ReleaseHeldBy releases only the seats locked by holder.
func (l *Ledger) ReleaseHeldBy(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, holder uuid.UUID) ([]Seat, error) {
	return l.apply(ctx, eventID, seatIDs, func(snapshot []Seat, now time.Time) ([]Transition, error) {
		return planReleaseHeldBy(snapshot, holder, now), nil
	})
}

// Commit books the seats for holder. Seats locked by someone else, with a
// lock that has not lapsed, or already booked fail the batch.
func (l *Ledger) Commit(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, holder uuid.UUID) ([]Seat, error) {
	return l.apply(ctx, eventID, seatIDs, func(snapshot []Seat, now time.Time) ([]Transition, error) {
		return planCommit(snapshot, holder, now)
	})
}

// ReleaseBooked returns booked seats to available.
func (l *Ledger) ReleaseBooked(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	return l.apply(ctx, eventID, seatIDs, func(snapshot []Seat, now time.Time) ([]Transition, error) {
		return planReleaseBooked(snapshot, now), nil
	})
}

func (l *Ledger) apply(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, plan planFunc) ([]Seat, error) {
	if err := validateSeatIDs(seatIDs); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		snapshot, err := l.snapshot(ctx, eventID, seatIDs)
		if err != nil {
			return nil, err
		}

		now := l.now()
		transitions, err := plan(snapshot, now)
		if err != nil {
			return nil, err
		}
		if len(transitions) == 0 {
			return snapshot, nil
		}

		err = l.repo.ConditionalUpdateSeats(ctx, eventID, transitions)
		if err == nil {
			for _, fn := range l.onChange {
				fn(ctx, eventID)
			}
			return applyTransitions(snapshot, transitions, now), nil
		}

		var stale *StaleSeatError
		if !errors.As(err, &stale) {
			return nil, fmt.Errorf("update seats: %w", err)
		}
		if attempt >= l.maxAttempts {
			return nil, apperr.SeatConflict(stale.SeatID.String(), stale.SeatNumber, "being modified concurrently")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// snapshot reads the seats and returns them in request order.
func (l *Ledger) snapshot(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	found, err := l.repo.GetSeats(ctx, eventID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}

	byID := make(map[uuid.UUID]Seat, len(found))
	for _, seat := range found {
		byID[seat.ID] = seat
	}

	out := make([]Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat, ok := byID[id]
		if !ok {
			return nil, apperr.NotFound("seat %s not found for event %s", id, eventID).
				WithDetail("seat_id", id.String())
		}
		out = append(out, seat)
	}
	return out, nil
}

func validateSeatIDs(seatIDs []uuid.UUID) error {
	if len(seatIDs) == 0 {
		return apperr.Validation("at least one seat is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return apperr.Validation("seat %s requested more than once", id).WithDetail("seat_id", id.String())
		}
		seen[id] = struct{}{}
	}
	return nil
}
