package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"eventix/internal/seats"
	"eventix/internal/shared/apperr"
	"eventix/internal/shared/constants"
	"eventix/internal/users"
	"eventix/pkg/cache"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service interface {
	CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*EventResponse, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	ListEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error)
	UpdateStatus(ctx context.Context, id, requesterID uuid.UUID, role users.Role, status EventStatus) (*EventResponse, error)
	UpdateEvent(ctx context.Context, id, requesterID uuid.UUID, role users.Role, req UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(ctx context.Context, id, requesterID uuid.UUID, role users.Role) error

	// EnsureBookable fails unless seats of the event may be locked.
	EnsureBookable(ctx context.Context, id uuid.UUID) error
	InvalidateEvent(ctx context.Context, id uuid.UUID)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	cacheTTL     time.Duration
	logger       *logger.Logger
	now          func() time.Time
}

// NewService builds the event service. cacheService may be nil.
func NewService(repo Repository, cacheService cache.Service, cacheTTL time.Duration, log *logger.Logger) Service {
	if cacheTTL <= 0 {
		cacheTTL = constants.TTL_EVENT_DETAIL
	}
	return &service{
		repo:         repo,
		cacheService: cacheService,
		cacheTTL:     cacheTTL,
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*EventResponse, error) {
	now := s.now()
	if !req.Date.After(now) {
		return nil, apperr.Validation("event date must be in the future")
	}

	pricing := Pricing{}
	if err := mergePricing(pricing, req.Pricing); err != nil {
		return nil, err
	}

	maxPerUser := req.MaxBookingPerUser
	if maxPerUser == 0 {
		maxPerUser = DefaultMaxBookingPerUser
	}

	status := EventStatusDraft
	if req.Publish {
		status = EventStatusPublished
	}

	event := &Event{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Venue: Venue{
			Name:    req.Venue.Name,
			Address: req.Venue.Address,
			City:    req.Venue.City,
			Country: req.Venue.Country,
		},
		Date:              req.Date.UTC(),
		OrganizerID:       organizerID,
		Capacity:          req.Capacity,
		Pricing:           pricing,
		Status:            status,
		MaxBookingPerUser: maxPerUser,
	}

	layout := seats.GenerateLayout(event.ID, event.Capacity, pricing.PriceTable())
	if err := s.repo.CreateEvent(ctx, event, layout); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.invalidateLists(ctx)
	s.logger.LogEventCreated(ctx, event.ID.String(), organizerID.String(), len(layout))
	return toResponse(event, now), nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(event, s.now()), nil
}

// loadEvent reads through the cache. Counters may lag by up to the cache TTL.
func (s *service) loadEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	fetch := func() (interface{}, error) {
		event, err := s.repo.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		return event, nil
	}

	var event Event
	var err error
	if s.cacheService != nil {
		err = s.cacheService.GetOrSet(ctx, constants.BuildEventDetailKey(id.String()), s.cacheTTL, fetch, &event)
	} else {
		var v interface{}
		if v, err = fetch(); err == nil {
			event = *v.(*Event)
		}
	}
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (s *service) ListEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error) {
	query.Normalize()

	// Only plain paging is cached; filtered searches go to the database
	cacheable := s.cacheService != nil && query.Search == "" && query.Category == "" &&
		query.City == "" && query.DateFrom == "" && query.DateTo == ""
	key := constants.BuildEventListKey(query.Page, query.Limit, query.Status)

	if cacheable {
		var cached PaginatedEvents
		if err := s.cacheService.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	list, total, err := s.repo.ListEvents(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	now := s.now()
	out := &PaginatedEvents{
		Events:     make([]EventResponse, 0, len(list)),
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(query.Limit))),
	}
	for i := range list {
		out.Events = append(out.Events, *toResponse(&list[i], now))
	}

	if cacheable {
		if err := s.cacheService.Set(ctx, key, out, constants.TTL_EVENT_LIST); err != nil {
			s.logger.Warn("Failed to cache event list", "error", err.Error())
		}
	}
	return out, nil
}

func (s *service) UpdateStatus(ctx context.Context, id, requesterID uuid.UUID, role users.Role, status EventStatus) (*EventResponse, error) {
	event, err := s.loadForManagement(ctx, id, requesterID, role)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanTransitionTo(status) {
		return nil, apperr.InvalidState("event cannot move from %s to %s", event.Status, status)
	}

	if err := s.repo.UpdateEventStatus(ctx, id, event.Status, status); err != nil {
		if errors.Is(err, ErrEventStateChanged) {
			return nil, apperr.InvalidState("event status changed concurrently")
		}
		return nil, fmt.Errorf("update event status: %w", err)
	}
	event.Status = status

	s.InvalidateEvent(ctx, id)
	s.invalidateLists(ctx)
	return toResponse(event, s.now()), nil
}

// UpdateEvent edits the details of a draft or published event. New prices
// apply to the seat map from now on; bookings keep the prices they were
// made at.
func (s *service) UpdateEvent(ctx context.Context, id, requesterID uuid.UUID, role users.Role, req UpdateEventRequest) (*EventResponse, error) {
	event, err := s.loadForManagement(ctx, id, requesterID, role)
	if err != nil {
		return nil, err
	}
	if event.Status == EventStatusCancelled || event.Status == EventStatusCompleted {
		return nil, apperr.InvalidState("%s events cannot be edited", event.Status)
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Category != nil {
		event.Category = *req.Category
	}
	if req.Venue != nil {
		event.Venue = Venue{
			Name:    req.Venue.Name,
			Address: req.Venue.Address,
			City:    req.Venue.City,
			Country: req.Venue.Country,
		}
	}
	if req.Date != nil {
		if !req.Date.After(s.now()) {
			return nil, apperr.Validation("event date must be in the future")
		}
		event.Date = req.Date.UTC()
	}
	if req.MaxBookingPerUser != nil {
		event.MaxBookingPerUser = *req.MaxBookingPerUser
	}

	var reprice seats.PriceTable
	if len(req.Pricing) > 0 {
		merged := make(Pricing, len(event.Pricing)+len(req.Pricing))
		for seatType, price := range event.Pricing {
			merged[seatType] = price
		}
		if err := mergePricing(merged, req.Pricing); err != nil {
			return nil, err
		}
		event.Pricing = merged

		table := merged.PriceTable()
		reprice = make(seats.PriceTable, len(seats.SeatTypes))
		for _, seatType := range seats.SeatTypes {
			reprice[seatType] = table.PriceFor(seatType)
		}
	}

	if err := s.repo.UpdateEvent(ctx, event, event.Status, reprice); err != nil {
		switch {
		case errors.Is(err, ErrEventStateChanged):
			return nil, apperr.InvalidState("event status changed concurrently")
		case errors.Is(err, ErrEventNotFound):
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, fmt.Errorf("update event: %w", err)
	}

	s.InvalidateEvent(ctx, id)
	s.invalidateLists(ctx)
	if reprice != nil {
		s.invalidateSeatMap(ctx, id)
	}
	s.logger.Info("Event updated", "event_id", id.String(), "repriced", reprice != nil)
	return toResponse(event, s.now()), nil
}

// DeleteEvent removes an event that never took a booking. Published events
// must be cancelled first so no new booking can race the delete.
func (s *service) DeleteEvent(ctx context.Context, id, requesterID uuid.UUID, role users.Role) error {
	event, err := s.loadForManagement(ctx, id, requesterID, role)
	if err != nil {
		return err
	}
	if event.Status == EventStatusPublished {
		return apperr.InvalidState("cancel the event before deleting it")
	}

	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrEventHasBookings):
			return apperr.InvalidState("event has bookings and cannot be deleted")
		case errors.Is(err, ErrEventNotFound):
			return apperr.NotFound("event %s not found", id)
		}
		return fmt.Errorf("delete event: %w", err)
	}

	s.InvalidateEvent(ctx, id)
	s.invalidateLists(ctx)
	s.invalidateSeatMap(ctx, id)
	s.logger.Info("Event deleted", "event_id", id.String(), "by", requesterID.String())
	return nil
}

// loadForManagement reads the event uncached and checks the requester owns
// it or is an admin.
func (s *service) loadForManagement(ctx context.Context, id, requesterID uuid.UUID, role users.Role) (*Event, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, err
	}
	if role != users.RoleAdmin && event.OrganizerID != requesterID {
		return nil, apperr.Forbidden("only the organizer or an admin can change this event")
	}
	return event, nil
}

// mergePricing validates prices and writes them into dst. Prices carry at
// most two decimal places to match the seat price column.
func mergePricing(dst Pricing, prices map[seats.SeatType]decimal.Decimal) error {
	for seatType, price := range prices {
		if !seatType.Valid() {
			return apperr.Validation("unknown seat type %q in pricing", seatType)
		}
		if price.IsNegative() {
			return apperr.Validation("price for %s must not be negative", seatType)
		}
		if !price.Equal(price.Round(2)) {
			return apperr.Validation("price for %s has more than two decimal places", seatType)
		}
		dst[seatType] = price
	}
	return nil
}

func (s *service) EnsureBookable(ctx context.Context, id uuid.UUID) error {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.Status != EventStatusPublished {
		return apperr.InvalidState("event is %s", event.Status)
	}
	if !event.Date.After(s.now()) {
		return apperr.InvalidState("event has already started")
	}
	return nil
}

func (s *service) InvalidateEvent(ctx context.Context, id uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildEventDetailKey(id.String())); err != nil {
		s.logger.Warn("Failed to invalidate event cache", "event_id", id.String(), "error", err.Error())
	}
}

func (s *service) invalidateLists(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENT_LIST); err != nil {
		s.logger.Warn("Failed to invalidate event lists", "error", err.Error())
	}
}

func (s *service) invalidateSeatMap(ctx context.Context, id uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildSeatMapKey(id.String())); err != nil {
		s.logger.Warn("Failed to invalidate seat map", "event_id", id.String(), "error", err.Error())
	}
}
