package seats

import (
	"context"
	"fmt"
	"time"

	"eventix/internal/realtime"
	"eventix/internal/shared/apperr"
	"eventix/internal/shared/constants"
	"eventix/pkg/cache"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventGate decides whether an event currently accepts seat locks.
type EventGate interface {
	EnsureBookable(ctx context.Context, eventID uuid.UUID) error
}

type Service interface {
	GetSeatMap(ctx context.Context, eventID, viewer uuid.UUID) (*SeatMapResponse, error)
	LockSeats(ctx context.Context, eventID, userID uuid.UUID, req LockSeatsRequest) (*SeatLockResponse, error)
	UnlockSeats(ctx context.Context, eventID, userID uuid.UUID, req UnlockSeatsRequest) (*SeatUnlockResponse, error)
}

type service struct {
	repo         Repository
	ledger       *Ledger
	events       EventGate
	publisher    realtime.Publisher
	cacheService cache.Service
	lockTTL      time.Duration
	logger       *logger.Logger
	now          func() time.Time
}

// NewService builds the HTTP-facing seat service. cacheService may be nil.
func NewService(repo Repository, ledger *Ledger, events EventGate, publisher realtime.Publisher, cacheService cache.Service, lockTTL time.Duration, log *logger.Logger) Service {
	return &service{
		repo:         repo,
		ledger:       ledger,
		events:       events,
		publisher:    publisher,
		cacheService: cacheService,
		lockTTL:      lockTTL,
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// InvalidateSeatMap drops the cached seat map of an event. It is meant to be
// registered on the ledger with WithOnChange.
func InvalidateSeatMap(cacheService cache.Service, log *logger.Logger) func(ctx context.Context, eventID uuid.UUID) {
	return func(ctx context.Context, eventID uuid.UUID) {
		if cacheService == nil {
			return
		}
		if err := cacheService.Delete(ctx, constants.BuildSeatMapKey(eventID.String())); err != nil {
			log.Warn("Failed to invalidate seat map", "event_id", eventID.String(), "error", err.Error())
		}
	}
}

func (s *service) GetSeatMap(ctx context.Context, eventID, viewer uuid.UUID) (*SeatMapResponse, error) {
	list, err := s.listSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("event %s not found", eventID)
	}

	now := s.now()
	out := &SeatMapResponse{
		EventID: eventID,
		Seats:   make([]SeatResponse, 0, len(list)),
	}
	for i := range list {
		resp := toSeatResponse(&list[i], viewer, now)
		switch resp.Status {
		case StatusAvailable:
			out.Summary.Available++
		case StatusLocked:
			out.Summary.Locked++
		case StatusBooked:
			out.Summary.Booked++
		}
		out.Seats = append(out.Seats, resp)
	}
	out.Summary.Total = len(list)
	return out, nil
}

// listSeats caches raw rows; effective status is derived on every read so a
// lapsed lock shows as available even from cache.
func (s *service) listSeats(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	fetch := func() (interface{}, error) {
		return s.repo.ListSeats(ctx, eventID)
	}

	var list []Seat
	if s.cacheService == nil {
		v, err := fetch()
		if err != nil {
			return nil, fmt.Errorf("list seats: %w", err)
		}
		return v.([]Seat), nil
	}
	if err := s.cacheService.GetOrSet(ctx, constants.BuildSeatMapKey(eventID.String()), constants.TTL_SEAT_MAP, fetch, &list); err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return list, nil
}

func (s *service) LockSeats(ctx context.Context, eventID, userID uuid.UUID, req LockSeatsRequest) (*SeatLockResponse, error) {
	if err := s.events.EnsureBookable(ctx, eventID); err != nil {
		return nil, err
	}

	locked, err := s.ledger.Lock(ctx, eventID, req.SeatIDs, userID, s.lockTTL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &SeatLockResponse{
		EventID:    eventID,
		Seats:      make([]SeatResponse, 0, len(locked)),
		TotalPrice: decimal.Zero,
		TTL:        int(s.lockTTL.Seconds()),
	}
	ids, numbers := seatRefs(locked)
	for i := range locked {
		out.Seats = append(out.Seats, toSeatResponse(&locked[i], userID, now))
		out.TotalPrice = out.TotalPrice.Add(locked[i].Price)
		if locked[i].LockedUntil != nil {
			out.LockedUntil = *locked[i].LockedUntil
		}
	}

	s.logger.LogSeatsLocked(ctx, eventID.String(), userID.String(), numbers, out.LockedUntil)
	s.publish(ctx, eventID, realtime.KindSeatLocked, realtime.SeatChange{
		SeatIDs:     ids,
		SeatNumbers: numbers,
		Status:      string(StatusLocked),
		HolderID:    userID.String(),
		LockedUntil: &out.LockedUntil,
	})
	return out, nil
}

func (s *service) UnlockSeats(ctx context.Context, eventID, userID uuid.UUID, req UnlockSeatsRequest) (*SeatUnlockResponse, error) {
	before, err := s.repo.GetSeats(ctx, eventID, req.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	held := make(map[uuid.UUID]bool, len(before))
	for i := range before {
		held[before[i].ID] = before[i].Status == StatusLocked && before[i].heldBy(userID)
	}

	result, err := s.ledger.ReleaseHeldBy(ctx, eventID, req.SeatIDs, userID)
	if err != nil {
		return nil, err
	}

	// Seats the caller did not hold come back unchanged and are not reported
	now := s.now()
	released := make([]Seat, 0, len(result))
	for _, seat := range result {
		if held[seat.ID] && seat.Status == StatusAvailable {
			released = append(released, seat)
		}
	}

	out := &SeatUnlockResponse{EventID: eventID, Released: make([]SeatResponse, 0, len(released))}
	for i := range released {
		out.Released = append(out.Released, toSeatResponse(&released[i], userID, now))
	}
	if len(released) == 0 {
		return out, nil
	}

	ids, numbers := seatRefs(released)
	s.logger.LogSeatsReleased(ctx, eventID.String(), numbers, "unlocked by holder")
	s.publish(ctx, eventID, realtime.KindSeatReleased, realtime.SeatChange{
		SeatIDs:     ids,
		SeatNumbers: numbers,
		Status:      string(StatusAvailable),
		UserID:      userID.String(),
		Reason:      "unlocked",
	})
	return out, nil
}

func (s *service) publish(ctx context.Context, eventID uuid.UUID, kind realtime.Kind, payload interface{}) {
	if err := realtime.Publish(ctx, s.publisher, eventID, kind, payload); err != nil {
		s.logger.Warn("Failed to publish seat change", "event_id", eventID.String(), "kind", string(kind), "error", err.Error())
	}
}

// seatRefs returns the ids and numbers of the seats, in order.
func seatRefs(list []Seat) ([]string, []string) {
	ids := make([]string, len(list))
	numbers := make([]string, len(list))
	for i, seat := range list {
		ids[i] = seat.ID.String()
		numbers[i] = seat.SeatNumber
	}
	return ids, numbers
}
