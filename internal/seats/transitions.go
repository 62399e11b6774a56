package seats

import (
	"time"

	"eventix/internal/shared/apperr"

	"github.com/google/uuid"
)

// Expectation is the prior state a seat must still be in when its
// transition is applied. HolderID nil matches only a seat without holder.
// ExpiredBy, when set, additionally requires the lock to have lapsed by
// that instant.
type Expectation struct {
	Status    Status
	HolderID  *uuid.UUID
	ExpiredBy *time.Time
}

// Transition is one conditional seat update within a ledger batch.
type Transition struct {
	SeatID     uuid.UUID
	SeatNumber string
	Expect     Expectation
	Next       State
}

// Matches reports whether seat still satisfies the expectation.
func (e Expectation) Matches(seat *Seat) bool {
	if seat.Status != e.Status {
		return false
	}
	if (e.HolderID == nil) != (seat.HolderID == nil) {
		return false
	}
	if e.HolderID != nil && *e.HolderID != *seat.HolderID {
		return false
	}
	if e.ExpiredBy != nil && seat.LockedUntil != nil && seat.LockedUntil.After(*e.ExpiredBy) {
		return false
	}
	return true
}

func observed(seat *Seat, now time.Time) Expectation {
	exp := Expectation{Status: seat.Status, HolderID: seat.HolderID}
	if seat.Status == StatusLocked && seat.lockExpired(now) {
		exp.ExpiredBy = &now
	}
	return exp
}

func transition(seat *Seat, now time.Time, next State) Transition {
	return Transition{
		SeatID:     seat.ID,
		SeatNumber: seat.SeatNumber,
		Expect:     observed(seat, now),
		Next:       next,
	}
}

var availableState = State{Status: StatusAvailable}

// planLock locks every seat for holder until the given instant. The first
// seat, in request order, that is booked or validly locked by someone else
// aborts the whole batch.
func planLock(snapshot []Seat, holder uuid.UUID, now, until time.Time) ([]Transition, error) {
	next := State{Status: StatusLocked, HolderID: &holder, LockedUntil: &until}
	out := make([]Transition, 0, len(snapshot))
	for i := range snapshot {
		seat := &snapshot[i]
		switch seat.EffectiveStatus(now) {
		case StatusBooked:
			return nil, apperr.SeatConflict(seat.ID.String(), seat.SeatNumber, "already booked")
		case StatusLocked:
			if !seat.heldBy(holder) {
				return nil, apperr.SeatConflict(seat.ID.String(), seat.SeatNumber, "locked by another user")
			}
		}
		out = append(out, transition(seat, now, next))
	}
	return out, nil
}

// planCommit books seats that are available or locked by holder.
func planCommit(snapshot []Seat, holder uuid.UUID, now time.Time) ([]Transition, error) {
	next := State{Status: StatusBooked}
	out := make([]Transition, 0, len(snapshot))
	for i := range snapshot {
		seat := &snapshot[i]
		switch seat.EffectiveStatus(now) {
		case StatusBooked:
			return nil, apperr.SeatConflict(seat.ID.String(), seat.SeatNumber, "already booked")
		case StatusLocked:
			if !seat.heldBy(holder) {
				return nil, apperr.SeatConflict(seat.ID.String(), seat.SeatNumber, "locked by another user")
			}
		}
		out = append(out, transition(seat, now, next))
	}
	return out, nil
}

// planRelease returns every seat to available whatever its prior state.
func planRelease(snapshot []Seat, now time.Time) []Transition {
	out := make([]Transition, 0, len(snapshot))
	for i := range snapshot {
		seat := &snapshot[i]
		if seat.Status == StatusAvailable && seat.HolderID == nil && seat.LockedUntil == nil {
			continue
		}
		out = append(out, transition(seat, now, availableState))
	}
	return out
}

// planReleaseHeldBy frees only the seats currently locked by holder.
func planReleaseHeldBy(snapshot []Seat, holder uuid.UUID, now time.Time) []Transition {
	out := make([]Transition, 0, len(snapshot))
	for i := range snapshot {
		seat := &snapshot[i]
		if seat.Status != StatusLocked || !seat.heldBy(holder) {
			continue
		}
		out = append(out, transition(seat, now, availableState))
	}
	return out
}

// planReleaseBooked frees booked seats; anything else is left alone.
func planReleaseBooked(snapshot []Seat, now time.Time) []Transition {
	out := make([]Transition, 0, len(snapshot))
	for i := range snapshot {
		seat := &snapshot[i]
		if seat.Status != StatusBooked {
			continue
		}
		out = append(out, transition(seat, now, availableState))
	}
	return out
}

// applyTransitions returns the snapshot as it looks after the batch.
func applyTransitions(snapshot []Seat, transitions []Transition, now time.Time) []Seat {
	next := make(map[uuid.UUID]State, len(transitions))
	for _, t := range transitions {
		next[t.SeatID] = t.Next
	}
	out := make([]Seat, len(snapshot))
	for i, seat := range snapshot {
		if st, ok := next[seat.ID]; ok {
			seat.Apply(st)
			seat.UpdatedAt = now
		}
		out[i] = seat
	}
	return out
}
