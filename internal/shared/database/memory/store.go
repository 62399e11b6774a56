// Package memory keeps users, events, seats and bookings in process memory.
// It follows the same conditional-update contracts as the gorm repositories
// and backs the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/seats"
	"eventix/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	_ users.Repository    = (*Store)(nil)
	_ events.Repository   = (*Store)(nil)
	_ seats.Repository    = (*Store)(nil)
	_ bookings.Repository = (*Store)(nil)
)

// Store is safe for concurrent use. Every read returns a copy.
type Store struct {
	mu sync.RWMutex

	users      map[uuid.UUID]*users.User
	emails     map[string]uuid.UUID
	events     map[uuid.UUID]*events.Event
	seats      map[uuid.UUID]*seats.Seat
	eventSeats map[uuid.UUID][]uuid.UUID
	bookings   map[uuid.UUID]*bookings.Booking
	references map[string]uuid.UUID
	bookingSeq []uuid.UUID
	now        func() time.Time
	failures   map[string][]error
}

func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]*users.User),
		emails:     make(map[string]uuid.UUID),
		events:     make(map[uuid.UUID]*events.Event),
		seats:      make(map[uuid.UUID]*seats.Seat),
		eventSeats: make(map[uuid.UUID][]uuid.UUID),
		bookings:   make(map[uuid.UUID]*bookings.Booking),
		references: make(map[string]uuid.UUID),
		now:        func() time.Time { return time.Now().UTC() },
		failures:   make(map[string][]error),
	}
}

// FailNext makes the next call of the named repository method return err.
// Repeated calls queue up, one failure per call. Tests use it to drive
// failure paths.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], err)
}

func (s *Store) injected(method string) error {
	queue := s.failures[method]
	if len(queue) == 0 {
		return nil
	}
	s.failures[method] = queue[1:]
	return queue[0]
}

// USERS

func (s *Store) CreateUser(ctx context.Context, user *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = users.NormalizeEmail(user.Email)
	if _, taken := s.emails[user.Email]; taken {
		return users.ErrDuplicateEmail
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	cp := *user
	s.users[user.ID] = &cp
	s.emails[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[users.NormalizeEmail(email)]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return users.ErrUserNotFound
	}
	u.Password = hashedPassword
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[users.NormalizeEmail(email)]
	return ok, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, userID uuid.UUID, firstName, lastName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return users.ErrUserNotFound
	}
	email = users.NormalizeEmail(email)
	if owner, taken := s.emails[email]; taken && owner != userID {
		return users.ErrDuplicateEmail
	}
	delete(s.emails, u.Email)
	s.emails[email] = userID
	u.FirstName, u.LastName, u.Email = firstName, lastName, email
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateUserRole(ctx context.Context, userID uuid.UUID, role users.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return users.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return users.ErrUserNotFound
	}
	delete(s.emails, u.Email)
	delete(s.users, userID)
	return nil
}

func (s *Store) ListUsers(ctx context.Context, query users.UserListQuery) ([]users.User, int64, error) {
	query.Normalize()
	term := strings.ToLower(query.Search)

	s.mu.RLock()
	matched := make([]users.User, 0, len(s.users))
	for _, u := range s.users {
		if query.Role != "" && string(u.Role) != query.Role {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), term) &&
			!strings.Contains(strings.ToLower(u.LastName), term) &&
			!strings.Contains(u.Email, term) {
			continue
		}
		matched = append(matched, *u)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, query.Page, query.Limit), int64(len(matched)), nil
}

// EVENTS

func (s *Store) CreateEvent(ctx context.Context, event *events.Event, eventSeats []seats.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := s.now()
	event.CreatedAt, event.UpdatedAt = now, now
	event.AvailableSeats = len(eventSeats)

	cp := *event
	s.events[event.ID] = &cp
	s.insertSeats(eventSeats, now)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, events.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListEvents(ctx context.Context, query events.EventListQuery) ([]events.Event, int64, error) {
	query.Normalize()

	s.mu.RLock()
	matched := make([]events.Event, 0, len(s.events))
	for _, e := range s.events {
		if eventMatches(e, query) {
			matched = append(matched, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date.Equal(matched[j].Date) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].Date.Before(matched[j].Date)
	})
	return page(matched, query.Page, query.Limit), int64(len(matched)), nil
}

func eventMatches(e *events.Event, q events.EventListQuery) bool {
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(e.Title), term) &&
			!strings.Contains(strings.ToLower(e.Description), term) &&
			!strings.Contains(strings.ToLower(e.Venue.Name), term) {
			return false
		}
	}
	if q.Category != "" && !strings.EqualFold(e.Category, q.Category) {
		return false
	}
	if q.City != "" && !strings.EqualFold(e.Venue.City, q.City) {
		return false
	}
	if q.Status != "" && string(e.Status) != q.Status {
		return false
	}
	if q.DateFrom != "" {
		if from, err := time.Parse("2006-01-02", q.DateFrom); err == nil && e.Date.Before(from) {
			return false
		}
	}
	if q.DateTo != "" {
		if to, err := time.Parse("2006-01-02", q.DateTo); err == nil && !e.Date.Before(to.Add(24*time.Hour)) {
			return false
		}
	}
	return true
}

func (s *Store) UpdateEventStatus(ctx context.Context, id uuid.UUID, from, to events.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return events.ErrEventNotFound
	}
	if e.Status != from {
		return events.ErrEventStateChanged
	}
	e.Status = to
	e.UpdatedAt = s.now()
	return nil
}

func (s *Store) IncrementEventCounters(ctx context.Context, id uuid.UUID, delta int, revenue decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("IncrementEventCounters"); err != nil {
		return err
	}
	e, ok := s.events[id]
	if !ok {
		return events.ErrEventNotFound
	}
	nextBookings := e.TotalBookings + delta
	nextRevenue := e.TotalRevenue.Add(revenue)
	if nextBookings < 0 || nextRevenue.IsNegative() {
		return events.ErrCounterUnderflow
	}
	e.TotalBookings = nextBookings
	e.TotalRevenue = nextRevenue
	e.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateEvent(ctx context.Context, event *events.Event, expect events.EventStatus, reprice seats.PriceTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[event.ID]
	if !ok {
		return events.ErrEventNotFound
	}
	if e.Status != expect {
		return events.ErrEventStateChanged
	}

	now := s.now()
	e.Title, e.Description, e.Category = event.Title, event.Description, event.Category
	e.Venue = event.Venue
	e.Date = event.Date
	e.MaxBookingPerUser = event.MaxBookingPerUser
	e.Pricing = make(events.Pricing, len(event.Pricing))
	for k, v := range event.Pricing {
		e.Pricing[k] = v
	}
	e.UpdatedAt = now
	event.UpdatedAt = now

	if len(reprice) == 0 {
		return nil
	}
	for _, id := range s.eventSeats[event.ID] {
		seat := s.seats[id]
		if price, ok := reprice[seat.Type]; ok {
			seat.Price = price
			seat.UpdatedAt = now
		}
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return events.ErrEventNotFound
	}
	for _, b := range s.bookings {
		if b.EventID == id {
			return events.ErrEventHasBookings
		}
	}
	for _, seatID := range s.eventSeats[id] {
		delete(s.seats, seatID)
	}
	delete(s.eventSeats, id)
	delete(s.events, id)
	return nil
}

// SEATS

func (s *Store) CreateSeats(ctx context.Context, list []seats.Seat) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertSeats(list, s.now())
	s.refreshAvailable(list[0].EventID)
	return nil
}

func (s *Store) insertSeats(list []seats.Seat, now time.Time) {
	for i := range list {
		seat := list[i]
		if seat.ID == uuid.Nil {
			seat.ID = uuid.New()
		}
		seat.CreatedAt, seat.UpdatedAt = now, now
		s.seats[seat.ID] = &seat
		s.eventSeats[seat.EventID] = append(s.eventSeats[seat.EventID], seat.ID)
	}
}

func (s *Store) GetSeat(ctx context.Context, eventID, seatID uuid.UUID) (*seats.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seat, ok := s.seats[seatID]
	if !ok || seat.EventID != eventID {
		return nil, seats.ErrSeatNotFound
	}
	cp := *seat
	return &cp, nil
}

func (s *Store) GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]seats.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		if seat, ok := s.seats[id]; ok && seat.EventID == eventID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (s *Store) ListSeats(ctx context.Context, eventID uuid.UUID) ([]seats.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.eventSeats[eventID]
	out := make([]seats.Seat, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.seats[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (s *Store) ConditionalUpdateSeats(ctx context.Context, eventID uuid.UUID, transitions []seats.Transition) error {
	if len(transitions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("ConditionalUpdateSeats"); err != nil {
		return err
	}
	for _, t := range transitions {
		if !t.Next.Consistent() {
			return fmt.Errorf("seat %s to %s: %w", t.SeatNumber, t.Next.Status, seats.ErrSeatState)
		}
		seat, ok := s.seats[t.SeatID]
		if !ok || seat.EventID != eventID || !t.Expect.Matches(seat) {
			return &seats.StaleSeatError{SeatID: t.SeatID, SeatNumber: t.SeatNumber}
		}
	}

	now := s.now()
	for _, t := range transitions {
		seat := s.seats[t.SeatID]
		seat.Apply(t.Next)
		seat.UpdatedAt = now
	}
	s.refreshAvailable(eventID)
	return nil
}

// refreshAvailable recounts the event's seats the way the SQL store does.
func (s *Store) refreshAvailable(eventID uuid.UUID) {
	e, ok := s.events[eventID]
	if !ok {
		return
	}
	count := 0
	for _, id := range s.eventSeats[eventID] {
		switch s.seats[id].Status {
		case seats.StatusAvailable, seats.StatusSelected:
			count++
		}
	}
	e.AvailableSeats = count
}

// BOOKINGS

func (s *Store) CreateBooking(ctx context.Context, booking *bookings.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("CreateBooking"); err != nil {
		return err
	}
	if _, taken := s.references[booking.BookingReference]; taken {
		return bookings.ErrDuplicateReference
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	for i := range booking.Seats {
		if booking.Seats[i].ID == uuid.Nil {
			booking.Seats[i].ID = uuid.New()
		}
		booking.Seats[i].BookingID = booking.ID
	}
	now := s.now()
	booking.CreatedAt, booking.UpdatedAt = now, now

	s.bookings[booking.ID] = cloneBooking(booking)
	s.references[booking.BookingReference] = booking.ID
	s.bookingSeq = append(s.bookingSeq, booking.ID)
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, bookings.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (s *Store) FindBookingByReference(ctx context.Context, reference string) (*bookings.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.references[reference]
	if !ok {
		return nil, bookings.ErrBookingNotFound
	}
	return cloneBooking(s.bookings[id]), nil
}

func (s *Store) UpdateBooking(ctx context.Context, id uuid.UUID, expect bookings.Expectation, patch bookings.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("UpdateBooking"); err != nil {
		return err
	}
	b, ok := s.bookings[id]
	if !ok {
		return bookings.ErrBookingNotFound
	}
	if !expect.Matches(b) {
		return bookings.ErrBookingStateChanged
	}
	patch.Apply(b)
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListBookings(ctx context.Context, query bookings.BookingListQuery) ([]bookings.Booking, int64, error) {
	query.Normalize()

	s.mu.RLock()
	matched := make([]bookings.Booking, 0)
	// Newest first, as the SQL store orders by created_at DESC
	for i := len(s.bookingSeq) - 1; i >= 0; i-- {
		b := s.bookings[s.bookingSeq[i]]
		if query.Matches(b) {
			matched = append(matched, *cloneBooking(b))
		}
	}
	s.mu.RUnlock()

	return page(matched, query.Page, query.Limit), int64(len(matched)), nil
}

func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]bookings.Booking, error) {
	s.mu.RLock()
	out := make([]bookings.Booking, 0)
	for _, id := range s.bookingSeq {
		b := s.bookings[id]
		if b.Status == bookings.StatusPending && b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			out = append(out, *cloneBooking(b))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneBooking(b *bookings.Booking) *bookings.Booking {
	cp := *b
	cp.Seats = append([]bookings.BookedSeat(nil), b.Seats...)
	return &cp
}

func page[T any](items []T, pageNum, limit int) []T {
	start := (pageNum - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
