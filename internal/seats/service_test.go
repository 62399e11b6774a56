package seats_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"eventix/internal/events"
	"eventix/internal/realtime"
	"eventix/internal/seats"
	"eventix/internal/shared/apperr"
	"eventix/internal/shared/database/memory"
	"eventix/pkg/cache"
	"eventix/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (r *recorder) Publish(_ context.Context, msg realtime.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) all() []realtime.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Message(nil), r.messages...)
}

type gate struct{ err error }

func (g gate) EnsureBookable(context.Context, uuid.UUID) error { return g.err }

type serviceFixture struct {
	svc       seats.Service
	store     *memory.Store
	published *recorder
	event     uuid.UUID
	layout    []seats.Seat
}

func newServiceFixture(t *testing.T, bookable error) *serviceFixture {
	t.Helper()
	log := logger.Discard()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cacheService := cache.NewService(client, log)

	store := memory.New()
	event := &events.Event{
		ID:       uuid.New(),
		Title:    "Service Test",
		Date:     time.Now().Add(72 * time.Hour),
		Capacity: 6,
		Status:   events.EventStatusPublished,
	}
	layout := seats.GenerateLayout(event.ID, 6, seats.PriceTable{seats.SeatTypeVIP: decimal.NewFromInt(150)})
	require.NoError(t, store.CreateEvent(context.Background(), event, layout))

	ledger := seats.NewLedger(store, seats.WithOnChange(seats.InvalidateSeatMap(cacheService, log)))
	published := &recorder{}
	svc := seats.NewService(store, ledger, gate{err: bookable}, published, cacheService, 5*time.Minute, log)

	return &serviceFixture{svc: svc, store: store, published: published, event: event.ID, layout: layout}
}

func TestSeatMapReflectsLocksThroughCache(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	before, err := f.svc.GetSeatMap(ctx, f.event, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, seats.SeatMapSummary{Total: 6, Available: 6}, before.Summary)

	_, err = f.svc.LockSeats(ctx, f.event, alice, seats.LockSeatsRequest{SeatIDs: []uuid.UUID{f.layout[0].ID}})
	require.NoError(t, err)

	asAlice, err := f.svc.GetSeatMap(ctx, f.event, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, asAlice.Summary.Locked)
	assert.True(t, asAlice.Seats[0].HeldByYou)

	asBob, err := f.svc.GetSeatMap(ctx, f.event, bob)
	require.NoError(t, err)
	assert.Equal(t, seats.StatusLocked, asBob.Seats[0].Status)
	assert.False(t, asBob.Seats[0].HeldByYou)
}

func TestSeatMapUnknownEvent(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.GetSeatMap(context.Background(), uuid.New(), uuid.Nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLockSeatsPublishesAndPrices(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	alice := uuid.New()

	ids := []uuid.UUID{f.layout[1].ID, f.layout[0].ID}
	resp, err := f.svc.LockSeats(ctx, f.event, alice, seats.LockSeatsRequest{SeatIDs: ids})
	require.NoError(t, err)

	assert.Equal(t, 300, resp.TTL)
	assert.Equal(t, "300", resp.TotalPrice.String())
	assert.Equal(t, f.layout[1].ID, resp.Seats[0].ID)
	assert.True(t, resp.Seats[0].HeldByYou)

	msgs := f.published.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, realtime.KindSeatLocked, msgs[0].Kind)
	assert.Equal(t, f.event, msgs[0].EventID)

	var change realtime.SeatChange
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &change))
	assert.Equal(t, []string{ids[0].String(), ids[1].String()}, change.SeatIDs)
	assert.Equal(t, alice.String(), change.HolderID)
	assert.NotNil(t, change.LockedUntil)
}

func TestLockSeatsRefusedForClosedEvent(t *testing.T) {
	f := newServiceFixture(t, apperr.InvalidState("event is not open for booking"))
	ctx := context.Background()

	_, err := f.svc.LockSeats(ctx, f.event, uuid.New(), seats.LockSeatsRequest{SeatIDs: []uuid.UUID{f.layout[0].ID}})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	seat, err := f.store.GetSeat(ctx, f.event, f.layout[0].ID)
	require.NoError(t, err)
	assert.Equal(t, seats.StatusAvailable, seat.Status)
	assert.Empty(t, f.published.all())
}

func TestUnlockReportsOnlyOwnSeats(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := f.svc.LockSeats(ctx, f.event, alice, seats.LockSeatsRequest{SeatIDs: []uuid.UUID{f.layout[0].ID}})
	require.NoError(t, err)
	_, err = f.svc.LockSeats(ctx, f.event, bob, seats.LockSeatsRequest{SeatIDs: []uuid.UUID{f.layout[1].ID}})
	require.NoError(t, err)

	resp, err := f.svc.UnlockSeats(ctx, f.event, alice, seats.UnlockSeatsRequest{
		SeatIDs: []uuid.UUID{f.layout[0].ID, f.layout[1].ID, f.layout[2].ID},
	})
	require.NoError(t, err)
	require.Len(t, resp.Released, 1)
	assert.Equal(t, f.layout[0].ID, resp.Released[0].ID)

	seat, err := f.store.GetSeat(ctx, f.event, f.layout[1].ID)
	require.NoError(t, err)
	assert.Equal(t, seats.StatusLocked, seat.Status)

	msgs := f.published.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, realtime.KindSeatReleased, msgs[2].Kind)

	// Nothing held, nothing reported or published
	resp, err = f.svc.UnlockSeats(ctx, f.event, alice, seats.UnlockSeatsRequest{SeatIDs: []uuid.UUID{f.layout[0].ID}})
	require.NoError(t, err)
	assert.Empty(t, resp.Released)
	assert.Len(t, f.published.all(), 3)
}
