package bookings_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/payments"
	"eventix/internal/realtime"
	"eventix/internal/seats"
	"eventix/internal/shared/apperr"
	"eventix/internal/shared/database/memory"
	"eventix/internal/users"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FAKES

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type refundCall struct {
	PaymentID string
	Amount    decimal.Decimal
}

type fakeGateway struct {
	mu      sync.Mutex
	status  payments.ChargeStatus
	err     error
	charges []payments.ChargeRequest
	refunds []refundCall
	// onCharge runs before the charge is answered, like a webhook that
	// arrives ahead of the gateway response.
	onCharge func(bookingID uuid.UUID)
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) ConfirmCharge(_ context.Context, req *payments.ChargeRequest) (*payments.ChargeResult, error) {
	if g.onCharge != nil {
		g.onCharge(uuid.MustParse(req.Metadata["booking_id"]))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, *req)
	if g.err != nil {
		return nil, g.err
	}
	id := uuid.NewString()
	res := &payments.ChargeResult{PaymentID: "pi_" + id, Status: g.status}
	switch g.status {
	case payments.ChargeSucceeded:
		res.TransactionID = "txn_" + id
	case payments.ChargePending:
		res.ClientSecret = "secret_" + id
	case payments.ChargeFailed:
		res.FailureReason = "card declined"
	}
	return res, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, refundCall{PaymentID: paymentID, Amount: amount})
	return nil
}

func (g *fakeGateway) set(status payments.ChargeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func (g *fakeGateway) refundCalls() []refundCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]refundCall(nil), g.refunds...)
}

type fakeMailer struct {
	sent chan string
}

func (m *fakeMailer) NotifyBookingConfirmed(_ context.Context, b *bookings.Booking, _ *events.Event) error {
	m.sent <- "confirmed:" + b.BookingReference
	return nil
}

func (m *fakeMailer) NotifyBookingCancelled(_ context.Context, b *bookings.Booking, _ *events.Event) error {
	m.sent <- "cancelled:" + b.BookingReference
	return nil
}

type recorder struct {
	mu    sync.Mutex
	kinds []realtime.Kind
}

func (r *recorder) Publish(_ context.Context, msg realtime.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, msg.Kind)
	return nil
}

func (r *recorder) all() []realtime.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Kind(nil), r.kinds...)
}

type fixedReferences struct {
	mu   sync.Mutex
	refs []string
}

func (f *fixedReferences) NewReference() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.refs[0]
	if len(f.refs) > 1 {
		f.refs = f.refs[1:]
	}
	return ref, nil
}

// FIXTURE

type fixture struct {
	svc       bookings.Service
	store     *memory.Store
	ledger    *seats.Ledger
	clock     *clock
	gateway   *fakeGateway
	mailer    *fakeMailer
	published *recorder
	signer    *bookings.VerificationSigner
	event     *events.Event
	layout    []seats.Seat
	alice     uuid.UUID
	bob       uuid.UUID
}

type option func(*bookings.Dependencies)

func withReferences(refs ...string) option {
	return func(d *bookings.Dependencies) { d.References = &fixedReferences{refs: refs} }
}

func newFixture(t *testing.T, eventIn time.Duration, opts ...option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	clk := &clock{now: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}

	event := &events.Event{
		ID:                uuid.New(),
		Title:             "Spring Gala",
		Date:              clk.now.Add(eventIn),
		Capacity:          10,
		Status:            events.EventStatusPublished,
		MaxBookingPerUser: 4,
	}
	prices := seats.PriceTable{
		seats.SeatTypeVIP:      decimal.NewFromInt(100),
		seats.SeatTypePremium:  decimal.NewFromInt(200),
		seats.SeatTypeStandard: decimal.NewFromInt(50),
	}
	layout := seats.GenerateLayout(event.ID, event.Capacity, prices)
	require.NoError(t, store.CreateEvent(ctx, event, layout))

	alice := &users.User{FirstName: "Alice", LastName: "Moreau", Email: "alice@example.com", Role: users.RoleUser}
	bob := &users.User{FirstName: "Bob", LastName: "Okafor", Email: "bob@example.com", Role: users.RoleUser}
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))

	f := &fixture{
		store:     store,
		ledger:    seats.NewLedger(store, seats.WithClock(clk.Now), seats.WithMaxAttempts(10)),
		clock:     clk,
		gateway:   &fakeGateway{status: payments.ChargeSucceeded},
		mailer:    &fakeMailer{sent: make(chan string, 64)},
		published: &recorder{},
		signer:    bookings.NewVerificationSigner("test-secret", "eventix"),
		event:     event,
		layout:    layout,
		alice:     alice.ID,
		bob:       bob.ID,
	}

	deps := bookings.Dependencies{
		Repo:      store,
		Ledger:    f.ledger,
		Events:    store,
		Users:     store,
		Gateway:   f.gateway,
		Publisher: f.published,
		Mailer:    f.mailer,
		Signer:    f.signer,
		Logger:    logger.Discard(),
		Now:       clk.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = bookings.NewService(deps, bookings.Config{
		PendingTTL:   15 * time.Minute,
		CheckInGrace: 6 * time.Hour,
		Currency:     "usd",
	})
	return f
}

func (f *fixture) book(t *testing.T, user uuid.UUID, idx ...int) *bookings.BookingResult {
	t.Helper()
	res, err := f.svc.CreateBooking(context.Background(), f.command(user, idx...))
	require.NoError(t, err)
	return res
}

func (f *fixture) command(user uuid.UUID, idx ...int) bookings.CreateBookingCommand {
	sel := make([]bookings.SeatSelection, len(idx))
	for i, n := range idx {
		sel[i] = bookings.SeatSelection{SeatID: f.layout[n].ID}
	}
	return bookings.CreateBookingCommand{
		UserID:        user,
		EventID:       f.event.ID,
		Seats:         sel,
		PaymentMethod: bookings.PaymentMethodCard,
	}
}

func (f *fixture) seatStatus(t *testing.T, n int) seats.Status {
	t.Helper()
	seat, err := f.store.GetSeat(context.Background(), f.event.ID, f.layout[n].ID)
	require.NoError(t, err)
	return seat.EffectiveStatus(f.clock.Now())
}

func (f *fixture) counters(t *testing.T) (int, string) {
	t.Helper()
	e, err := f.store.GetEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	return e.TotalBookings, e.TotalRevenue.StringFixed(2)
}

func (f *fixture) expectMail(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.mailer.sent:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("no mail sent, wanted %s", want)
	}
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	return apperr.KindOf(err)
}

// CREATE

func TestCreateBookingConfirmsPaidBooking(t *testing.T) {
	f := newFixture(t, 72*time.Hour)

	res := f.book(t, f.alice, 2, 0)
	b := res.Booking

	assert.Equal(t, bookings.StatusConfirmed, b.Status)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	assert.True(t, bookings.IsReference(b.BookingReference), b.BookingReference)
	assert.NotEmpty(t, b.VerificationToken)
	assert.NotEmpty(t, b.TransactionID)
	assert.Equal(t, "Alice Moreau", b.UserName)
	assert.Equal(t, "alice@example.com", b.UserEmail)
	assert.Equal(t, "usd", b.Currency)

	assert.Equal(t, "300.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", b.BookingFee.StringFixed(2))
	assert.Equal(t, "30.00", b.Tax.StringFixed(2))
	assert.Equal(t, "345.00", b.FinalAmount.StringFixed(2))

	require.Len(t, b.Seats, 2)
	assert.Equal(t, f.layout[2].ID, b.Seats[0].SeatID, "seats keep request order")
	assert.Equal(t, "C1", b.Seats[0].SeatNumber)

	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 0))
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 2))

	count, revenue := f.counters(t)
	assert.Equal(t, 1, count)
	assert.Equal(t, "345.00", revenue)

	assert.Equal(t, []realtime.Kind{realtime.KindSeatBooked}, f.published.all())
	f.expectMail(t, "confirmed:"+b.BookingReference)

	require.NotNil(t, res.Event)
	assert.Equal(t, "Spring Gala", res.Event.Title)

	stored, err := f.store.FindBookingByReference(context.Background(), b.BookingReference)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)

	charge := f.gateway.charges[0]
	assert.Equal(t, b.ID.String(), charge.Metadata["booking_id"])
	assert.True(t, charge.Amount.Equal(b.FinalAmount))
}

func TestCreateBookingWithOwnLock(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	_, err := f.ledger.Lock(context.Background(), f.event.ID, []uuid.UUID{f.layout[0].ID}, f.alice, 10*time.Minute)
	require.NoError(t, err)

	res := f.book(t, f.alice, 0)
	assert.Equal(t, bookings.StatusConfirmed, res.Booking.Status)
}

func TestCreateBookingSeatHeldByOther(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	_, err := f.ledger.Lock(ctx, f.event.ID, []uuid.UUID{f.layout[3].ID}, f.bob, 10*time.Minute)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.command(f.alice, 1, 3, 4))
	require.Equal(t, apperr.KindSeatUnavailable, kindOf(t, err))

	e, _ := apperr.As(err)
	assert.Equal(t, f.layout[3].ID.String(), e.Details["seat_id"])
	assert.Equal(t, "D1", e.Details["seat_number"])

	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 1))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 4))

	list, err := f.svc.ListAllBookings(ctx, bookings.BookingListQuery{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, f.gateway.charges)
}

func TestCreateBookingRejectsBadRequests(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.command(f.alice))
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	_, err = f.svc.CreateBooking(ctx, f.command(f.alice, 0, 0))
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	_, err = f.svc.CreateBooking(ctx, f.command(f.alice, 0, 1, 2, 3, 4))
	assert.Equal(t, apperr.KindValidation, kindOf(t, err), "over the per-user limit")

	cmd := f.command(f.alice, 0)
	cmd.PaymentMethod = "cheque"
	_, err = f.svc.CreateBooking(ctx, cmd)
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	cmd = f.command(uuid.New(), 0)
	_, err = f.svc.CreateBooking(ctx, cmd)
	assert.Equal(t, apperr.KindUnauthorized, kindOf(t, err))

	cmd = f.command(f.alice, 0)
	cmd.EventID = uuid.New()
	_, err = f.svc.CreateBooking(ctx, cmd)
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))

	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
}

func TestCreateBookingClosedEvent(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	require.NoError(t, f.store.UpdateEventStatus(ctx, f.event.ID, events.EventStatusPublished, events.EventStatusCancelled))

	_, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))

	g := newFixture(t, time.Hour)
	g.clock.Advance(2 * time.Hour)
	_, err = g.svc.CreateBooking(ctx, g.command(g.alice, 0))
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))
}

func TestCreateBookingPriceChanged(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	stale := decimal.NewFromInt(90)
	cmd := f.command(f.alice, 0, 1)
	cmd.Seats[1].Price = &stale

	_, err := f.svc.CreateBooking(context.Background(), cmd)
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 1))
}

func TestRepricingKeepsBookedPrices(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 2, 0)

	eventSvc := events.NewService(f.store, nil, 0, logger.Discard())
	_, err := eventSvc.UpdateEvent(ctx, f.event.ID, uuid.New(), users.RoleAdmin, events.UpdateEventRequest{
		Pricing: map[seats.SeatType]decimal.Decimal{
			seats.SeatTypeVIP:     decimal.NewFromInt(150),
			seats.SeatTypePremium: decimal.NewFromInt(250),
		},
	})
	require.NoError(t, err)

	repriced, err := f.store.GetSeat(ctx, f.event.ID, f.layout[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", repriced.Price.StringFixed(2))

	got, err := f.svc.GetBooking(ctx, res.Booking.ID, f.alice, users.RoleUser)
	require.NoError(t, err)
	require.Len(t, got.Booking.Seats, 2)
	assert.Equal(t, "200.00", got.Booking.Seats[0].Price.StringFixed(2))
	assert.Equal(t, "100.00", got.Booking.Seats[1].Price.StringFixed(2))
	assert.Equal(t, "345.00", got.Booking.FinalAmount.StringFixed(2))

	// New bookings pay the new price
	next := f.book(t, f.bob, 1)
	assert.Equal(t, "150.00", next.Booking.Subtotal.StringFixed(2))

	cancelled, err := f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.RefundAmount)
	assert.Equal(t, "276.00", cancelled.RefundAmount.StringFixed(2))
}

func TestCreateBookingPaymentDeclined(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargeFailed)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
	require.Equal(t, apperr.KindPaymentFailed, kindOf(t, err))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))

	list, err := f.svc.ListUserBookings(ctx, f.alice, bookings.BookingListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, bookings.StatusCancelled, list.Bookings[0].Status)
	assert.Equal(t, bookings.PaymentFailed, list.Bookings[0].PaymentStatus)

	count, revenue := f.counters(t)
	assert.Equal(t, 0, count)
	assert.Equal(t, "0.00", revenue)
}

func TestCreateBookingGatewayError(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.err = errors.New("gateway timeout")

	_, err := f.svc.CreateBooking(context.Background(), f.command(f.alice, 0))
	assert.Equal(t, apperr.KindPaymentFailed, kindOf(t, err))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
}

func TestCreateBookingRetriesReferenceCollision(t *testing.T) {
	f := newFixture(t, 72*time.Hour, withReferences("BK-1-AAAAAA", "BK-1-AAAAAA", "BK-1-BBBBBB"))

	first := f.book(t, f.alice, 0)
	second := f.book(t, f.bob, 1)

	assert.Equal(t, "BK-1-AAAAAA", first.Booking.BookingReference)
	assert.Equal(t, "BK-1-BBBBBB", second.Booking.BookingReference)
}

func TestCreateBookingReferenceExhausted(t *testing.T) {
	f := newFixture(t, 72*time.Hour, withReferences("BK-1-AAAAAA"))
	f.book(t, f.alice, 0)

	_, err := f.svc.CreateBooking(context.Background(), f.command(f.bob, 1))
	assert.Equal(t, apperr.KindReferenceGenerationFailed, kindOf(t, err))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 1))
}

func TestCreateBookingCounterFailureReleasesSeats(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.store.FailNext("IncrementEventCounters", errors.New("deadlock detected"))
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
	require.Error(t, err)
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
	assert.Empty(t, f.gateway.charges, "nothing is charged for a booking that was never counted")

	list, err := f.svc.ListAllBookings(ctx, bookings.BookingListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, bookings.StatusCancelled, list.Bookings[0].Status)
	assert.Equal(t, bookings.PaymentPending, list.Bookings[0].PaymentStatus)

	count, revenue := f.counters(t)
	assert.Equal(t, 0, count)
	assert.Equal(t, "0.00", revenue)
}

func TestCreateBookingRefundsWhenConfirmCannotBeStored(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.store.FailNext("UpdateBooking", errors.New("connection reset"))
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
	require.Error(t, err)
	require.Len(t, f.gateway.charges, 1)
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))

	list, err := f.svc.ListAllBookings(ctx, bookings.BookingListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Bookings, 1)
	b := list.Bookings[0]
	assert.Equal(t, bookings.StatusCancelled, b.Status)
	assert.Equal(t, bookings.PaymentRefunded, b.PaymentStatus)
	require.NotNil(t, b.RefundAmount)
	assert.True(t, b.RefundAmount.Equal(b.FinalAmount))

	refunds := f.gateway.refundCalls()
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(b.FinalAmount))
	assert.NotEmpty(t, refunds[0].PaymentID)

	count, revenue := f.counters(t)
	assert.Equal(t, 0, count)
	assert.Equal(t, "0.00", revenue)
}

func TestCreateBookingFailureWebhookBeforeChargeResponse(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	adapter := bookings.NewPaymentAdapter(f.svc, logger.Discard())
	f.gateway.onCharge = func(id uuid.UUID) {
		assert.NoError(t, adapter.FailPayment(ctx, id, "card declined"))
	}

	for _, status := range []payments.ChargeStatus{payments.ChargeFailed, payments.ChargePending} {
		f.gateway.set(status)
		_, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
		assert.Equal(t, apperr.KindPaymentFailed, kindOf(t, err), status)
		assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0), status)

		count, revenue := f.counters(t)
		assert.Equal(t, 0, count, status)
		assert.Equal(t, "0.00", revenue, status)
	}

	assert.NotContains(t, f.published.all(), realtime.KindSeatBooked)
	assert.Empty(t, f.gateway.refundCalls())
}

func TestCreateBookingSuccessWebhookBeforeChargeResponse(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	adapter := bookings.NewPaymentAdapter(f.svc, logger.Discard())
	f.gateway.onCharge = func(id uuid.UUID) {
		assert.NoError(t, adapter.CompletePayment(ctx, id, "txn_webhook"))
	}

	res, err := f.svc.CreateBooking(ctx, f.command(f.alice, 0))
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, res.Booking.Status)
	assert.Equal(t, bookings.PaymentPaid, res.Booking.PaymentStatus)
	assert.Equal(t, "txn_webhook", res.Booking.TransactionID)
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 0))
	assert.Empty(t, f.gateway.refundCalls())

	count, revenue := f.counters(t)
	assert.Equal(t, 1, count)
	assert.Equal(t, res.Booking.FinalAmount.StringFixed(2), revenue)
	f.expectMail(t, "confirmed:"+res.Booking.BookingReference)
}

func TestConcurrentBookingsOfOneSeat(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()

	const buyers = 12
	ids := make([]uuid.UUID, buyers)
	for i := range ids {
		u := &users.User{FirstName: "Buyer", LastName: "N", Email: uuid.NewString() + "@example.com"}
		require.NoError(t, f.store.CreateUser(ctx, u))
		ids[i] = u.ID
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		start     = make(chan struct{})
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateBooking(ctx, f.command(id, 5, 6))
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.Equal(t, apperr.KindSeatUnavailable, apperr.KindOf(err), "unexpected error: %v", err)
		}(id)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	count, _ := f.counters(t)
	assert.Equal(t, 1, count)
}

// PAYMENT

func TestPendingPaymentThenConfirm(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	ctx := context.Background()

	res := f.book(t, f.alice, 0)
	assert.Equal(t, bookings.StatusPending, res.Booking.Status)
	assert.NotEmpty(t, res.ClientSecret)
	assert.NotEmpty(t, res.Booking.PaymentID)
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 0))
	count, _ := f.counters(t)
	assert.Equal(t, 1, count)

	_, err := f.svc.ConfirmPayment(ctx, bookings.ConfirmPaymentCommand{
		BookingID: res.Booking.ID, RequesterID: f.bob, TransactionID: "txn_1",
	})
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))

	b, err := f.svc.ConfirmPayment(ctx, bookings.ConfirmPaymentCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, TransactionID: "txn_1",
	})
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, b.Status)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	f.expectMail(t, "confirmed:"+b.BookingReference)

	// Same transaction again is a no-op, another one is refused
	again, err := f.svc.ConfirmPayment(ctx, bookings.ConfirmPaymentCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, TransactionID: "txn_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "txn_1", again.TransactionID)

	_, err = f.svc.ConfirmPayment(ctx, bookings.ConfirmPaymentCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, TransactionID: "txn_2",
	})
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))
}

func TestWebhookOutcomesThroughAdapter(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	ctx := context.Background()
	adapter := bookings.NewPaymentAdapter(f.svc, logger.Discard())

	paid := f.book(t, f.alice, 0)
	failed := f.book(t, f.bob, 1)

	require.NoError(t, adapter.CompletePayment(ctx, paid.Booking.ID, "txn_ok"))
	require.NoError(t, adapter.FailPayment(ctx, failed.Booking.ID, "card declined"))

	got, err := f.svc.GetBooking(ctx, paid.Booking.ID, f.alice, users.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, got.Booking.Status)

	got, err = f.svc.GetBooking(ctx, failed.Booking.ID, f.bob, users.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, got.Booking.Status)
	assert.Equal(t, bookings.PaymentFailed, got.Booking.PaymentStatus)
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 1))

	count, _ := f.counters(t)
	assert.Equal(t, 1, count)

	// Late or repeated outcomes are acknowledged without changes
	require.NoError(t, adapter.FailPayment(ctx, paid.Booking.ID, "late failure"))
	require.NoError(t, adapter.FailPayment(ctx, failed.Booking.ID, "repeat"))
	require.NoError(t, adapter.CompletePayment(ctx, uuid.New(), "txn_unknown"))
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 0))
}

// CANCEL

func TestCancelWellAheadRefundsEightyPercent(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 2, 0)
	f.expectMail(t, "confirmed:"+res.Booking.BookingReference)

	b, err := f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	require.NoError(t, err)

	assert.Equal(t, bookings.StatusCancelled, b.Status)
	assert.Equal(t, bookings.PaymentRefunded, b.PaymentStatus)
	require.NotNil(t, b.RefundAmount)
	assert.Equal(t, "276.00", b.RefundAmount.StringFixed(2))
	assert.Equal(t, "Cancelled by user", b.CancellationReason)

	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 2))

	count, revenue := f.counters(t)
	assert.Equal(t, 0, count)
	assert.Equal(t, "0.00", revenue)

	refunds := f.gateway.refundCalls()
	require.Len(t, refunds, 1)
	assert.Equal(t, "276.00", refunds[0].Amount.StringFixed(2))
	assert.Equal(t, res.Booking.PaymentID, refunds[0].PaymentID)

	assert.Contains(t, f.published.all(), realtime.KindBookingCancelled)
	f.expectMail(t, "cancelled:"+b.BookingReference)

	_, err = f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	assert.Equal(t, apperr.KindAlreadyCancelled, kindOf(t, err))
}

func TestCancelCloseToEventHasNoRefund(t *testing.T) {
	f := newFixture(t, 24*time.Hour)
	res := f.book(t, f.alice, 0)

	b, err := f.svc.CancelBooking(context.Background(), bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser, Reason: "plans changed",
	})
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, b.Status)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	assert.Nil(t, b.RefundAmount)
	assert.Equal(t, "plans changed", b.CancellationReason)
	assert.Empty(t, f.gateway.refundCalls())
}

func TestCancelPermissions(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	_, err := f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.bob, RequesterRole: users.RoleUser,
	})
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))

	_, err = f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: uuid.New(), RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))

	_, err = f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: uuid.New(), RequesterRole: users.RoleAdmin,
	})
	require.NoError(t, err)
}

func TestCancelKeepsBookingWhenSeatsCannotBeFreed(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	outage := errors.New("database unavailable")
	for i := 0; i < 3; i++ {
		f.store.FailNext("ConditionalUpdateSeats", outage)
	}

	_, err := f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	require.ErrorIs(t, err, outage)

	got, err := f.svc.GetBooking(ctx, res.Booking.ID, f.alice, users.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, got.Booking.Status)
	assert.Equal(t, bookings.PaymentPaid, got.Booking.PaymentStatus)
	assert.Nil(t, got.Booking.CancelledAt)
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 0))
	assert.Empty(t, f.gateway.refundCalls())

	count, _ := f.counters(t)
	assert.Equal(t, 1, count)
}

func TestCancelExpiredBooking(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	f.clock.Advance(16 * time.Minute)
	n, err := f.svc.ExpirePending(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: res.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))
}

// EXPIRY

func TestExpirePendingFreesSeats(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	ctx := context.Background()

	pending := f.book(t, f.alice, 0)
	f.gateway.set(payments.ChargeSucceeded)
	f.book(t, f.bob, 1)

	n, err := f.svc.ExpirePending(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "payment window still open")

	f.clock.Advance(15 * time.Minute)
	n, err = f.svc.ExpirePending(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBooking(ctx, pending.Booking.ID, f.alice, users.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusExpired, got.Booking.Status)
	assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, 0))
	assert.Equal(t, seats.StatusBooked, f.seatStatus(t, 1))

	count, _ := f.counters(t)
	assert.Equal(t, 1, count)

	_, err = f.svc.ConfirmPayment(ctx, bookings.ConfirmPaymentCommand{
		BookingID: pending.Booking.ID, RequesterID: f.alice, TransactionID: "txn_late",
	})
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))
}

func TestJobProcessorDrainsBatches(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	for i := 0; i < 5; i++ {
		f.book(t, f.alice, i)
	}

	jobs := bookings.NewJobProcessor(&expireAt{Service: f.svc, at: f.clock.Now().Add(time.Hour)}, &bookings.JobConfig{
		ExpiryCheckInterval: time.Minute,
		BatchSize:           2,
	}, logger.Discard())

	assert.Equal(t, 5, jobs.ProcessExpiredBookings(context.Background()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, seats.StatusAvailable, f.seatStatus(t, i))
	}
}

// expireAt pins the cutoff the job processor passes in, which is wall time.
type expireAt struct {
	bookings.Service
	at time.Time
}

func (e *expireAt) ExpirePending(ctx context.Context, _ time.Time, limit int) (int, error) {
	return e.Service.ExpirePending(ctx, e.at, limit)
}

// CHECK-IN

func TestVerifyAndCheckIn(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	ref, err := f.svc.ResolveReference(res.Booking.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, res.Booking.BookingReference, ref)

	b, err := f.svc.VerifyAndCheckIn(ctx, ref)
	require.NoError(t, err)
	assert.True(t, b.CheckedIn)
	require.NotNil(t, b.CheckedInAt)

	_, err = f.svc.VerifyAndCheckIn(ctx, ref)
	require.Equal(t, apperr.KindAlreadyCheckedIn, kindOf(t, err))
	e, _ := apperr.As(err)
	assert.NotEmpty(t, e.Details["checked_in_at"])

	_, err = f.svc.VerifyAndCheckIn(ctx, "BK-1-ZZZZZZ")
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))

	_, err = f.svc.ResolveReference("not-a-code")
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))
}

func TestCheckInRequiresConfirmedBooking(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	f.gateway.set(payments.ChargePending)
	res := f.book(t, f.alice, 0)

	_, err := f.svc.VerifyAndCheckIn(context.Background(), res.Booking.BookingReference)
	assert.Equal(t, apperr.KindInvalidState, kindOf(t, err))
}

func TestConcurrentCheckInHasOneWinner(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.VerifyAndCheckIn(ctx, res.Booking.BookingReference)
			if err == nil {
				winners.Add(1)
				return
			}
			assert.Equal(t, apperr.KindAlreadyCheckedIn, apperr.KindOf(err))
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, winners.Load())
}

// READS

func TestGetBookingAndQRCode(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	res := f.book(t, f.alice, 0)

	_, err := f.svc.GetBooking(ctx, res.Booking.ID, f.bob, users.RoleUser)
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))

	got, err := f.svc.GetBooking(ctx, res.Booking.ID, f.bob, users.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, res.Booking.BookingReference, got.Booking.BookingReference)

	png, err := f.svc.QRCode(ctx, res.Booking.ID, f.alice, users.RoleUser)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = f.svc.QRCode(ctx, res.Booking.ID, f.bob, users.RoleUser)
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
}

func TestListBookingsFiltersByUserAndStatus(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	ctx := context.Background()
	first := f.book(t, f.alice, 0)
	f.book(t, f.alice, 1)
	f.book(t, f.bob, 2)

	_, err := f.svc.CancelBooking(ctx, bookings.CancelBookingCommand{
		BookingID: first.Booking.ID, RequesterID: f.alice, RequesterRole: users.RoleUser,
	})
	require.NoError(t, err)

	mine, err := f.svc.ListUserBookings(ctx, f.alice, bookings.BookingListQuery{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, mine.TotalCount)
	assert.Equal(t, 2, mine.TotalPages)
	assert.Len(t, mine.Bookings, 1)

	cancelled, err := f.svc.ListUserBookings(ctx, f.alice, bookings.BookingListQuery{Status: string(bookings.StatusCancelled)})
	require.NoError(t, err)
	require.Len(t, cancelled.Bookings, 1)
	assert.Equal(t, first.Booking.ID, cancelled.Bookings[0].ID)

	all, err := f.svc.ListAllBookings(ctx, bookings.BookingListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.TotalCount)
}
