package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventix/internal/events"
	"eventix/internal/payments"
	"eventix/internal/pricing"
	"eventix/internal/realtime"
	"eventix/internal/seats"
	"eventix/internal/shared/apperr"
	"eventix/internal/users"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultReferenceAttempts = 5
	releaseAttempts          = 3
	notifyTimeout            = 30 * time.Second
)

// EventStore is the part of event persistence bookings depend on.
type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
	IncrementEventCounters(ctx context.Context, id uuid.UUID, bookings int, revenue decimal.Decimal) error
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Mailer delivers booking emails. Calls are fire-and-forget from the
// booking's point of view.
type Mailer interface {
	NotifyBookingConfirmed(ctx context.Context, booking *Booking, event *events.Event) error
	NotifyBookingCancelled(ctx context.Context, booking *Booking, event *events.Event) error
}

type Service interface {
	CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*BookingResult, error)
	CancelBooking(ctx context.Context, cmd CancelBookingCommand) (*Booking, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Booking, error)
	VerifyAndCheckIn(ctx context.Context, reference string) (*Booking, error)

	// ResolveReference turns a typed reference or a scanned QR payload into
	// a booking reference.
	ResolveReference(code string) (string, error)

	CompletePayment(ctx context.Context, bookingID uuid.UUID, transactionID string) (*Booking, error)
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID, reason string) (*Booking, error)

	GetBooking(ctx context.Context, id, requesterID uuid.UUID, role users.Role) (*BookingResult, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error)
	ListAllBookings(ctx context.Context, query BookingListQuery) (*PaginatedBookings, error)
	QRCode(ctx context.Context, id, requesterID uuid.UUID, role users.Role) ([]byte, error)

	// ExpirePending closes up to limit pending bookings whose payment window
	// ended at or before now and returns how many were expired.
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
}

type Dependencies struct {
	Repo       Repository
	Ledger     *seats.Ledger
	Events     EventStore
	Users      UserDirectory
	Gateway    payments.Gateway
	Publisher  realtime.Publisher
	Mailer     Mailer
	References ReferenceGenerator
	Signer     *VerificationSigner
	Logger     *logger.Logger
	Now        func() time.Time
}

type Config struct {
	PendingTTL           time.Duration
	ReferenceMaxAttempts int
	Currency             string
	CheckInGrace         time.Duration
	QRCodeSize           int
}

type service struct {
	Dependencies
	cfg Config
}

func NewService(deps Dependencies, cfg Config) Service {
	if deps.References == nil {
		deps.References = NewReferenceGenerator()
	}
	if deps.Publisher == nil {
		deps.Publisher = realtime.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetDefault()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.ReferenceMaxAttempts <= 0 {
		cfg.ReferenceMaxAttempts = defaultReferenceAttempts
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &service{Dependencies: deps, cfg: cfg}
}

// CREATE

func (s *service) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*BookingResult, error) {
	seatIDs, err := validateCreate(cmd)
	if err != nil {
		return nil, err
	}

	event, err := s.loadEvent(ctx, cmd.EventID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if event.Status != events.EventStatusPublished {
		return nil, apperr.InvalidState("event is not open for booking")
	}
	if !event.Date.After(now) {
		return nil, apperr.InvalidState("event has already started")
	}
	if event.MaxBookingPerUser > 0 && len(seatIDs) > event.MaxBookingPerUser {
		return nil, apperr.Validation("at most %d seats can be booked at once", event.MaxBookingPerUser)
	}

	user, err := s.Users.GetUserByID(ctx, cmd.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, apperr.Unauthorized("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	committed, err := s.Ledger.Commit(ctx, cmd.EventID, seatIDs, cmd.UserID)
	if err != nil {
		return nil, seatUnavailable(err)
	}

	// Seats are booked from here on; every failure path must free them.
	booking := &Booking{
		ID:            uuid.New(),
		UserID:        cmd.UserID,
		EventID:       cmd.EventID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		PaymentMethod: cmd.PaymentMethod,
		Currency:      s.currency(cmd.Currency),
		UserName:      user.FullName(),
		UserEmail:     user.Email,
	}

	breakdown, err := s.priceSeats(booking, committed, cmd.Seats)
	if err != nil {
		s.releaseCommitted(ctx, cmd.EventID, seatIDs, booking.ID, err)
		return nil, err
	}
	booking.Subtotal = breakdown.Subtotal
	booking.BookingFee = breakdown.Fee
	booking.Tax = breakdown.Tax
	booking.Discount = breakdown.Discount
	booking.FinalAmount = breakdown.Final
	expiresAt := now.Add(s.cfg.PendingTTL)
	booking.ExpiresAt = &expiresAt

	if err := s.persist(ctx, booking, event, now); err != nil {
		s.releaseCommitted(ctx, cmd.EventID, seatIDs, booking.ID, err)
		return nil, err
	}

	// Counted before the charge so every closing path, including a webhook
	// that beats the charge response, takes back exactly what was added.
	if err := s.Events.IncrementEventCounters(ctx, booking.EventID, 1, booking.FinalAmount); err != nil {
		s.abandon(ctx, booking, "", false, false, err)
		return nil, fmt.Errorf("update event counters: %w", err)
	}

	charge, err := s.Gateway.ConfirmCharge(ctx, &payments.ChargeRequest{
		Amount:          booking.FinalAmount,
		Currency:        booking.Currency,
		PaymentMethod:   string(booking.PaymentMethod),
		PaymentMethodID: cmd.PaymentMethodID,
		Description:     fmt.Sprintf("%s - %s", event.Title, booking.BookingReference),
		Metadata: map[string]string{
			"booking_id": booking.ID.String(),
			"user_id":    booking.UserID.String(),
			"event_id":   booking.EventID.String(),
			"reference":  booking.BookingReference,
		},
	})
	if err != nil || charge == nil || charge.Status == payments.ChargeFailed {
		reason := "payment failed"
		if charge != nil && charge.FailureReason != "" {
			reason = "payment failed: " + charge.FailureReason
		}
		cause := err
		if cause == nil {
			cause = errors.New(reason)
		}
		s.failPayment(ctx, booking, reason, true, cause)
		return nil, apperr.Wrap(apperr.KindPaymentFailed, cause, reason).
			WithDetail("booking_id", booking.ID.String())
	}

	charged := charge.Status == payments.ChargeSucceeded
	result := &BookingResult{Booking: booking, Event: summarize(event)}
	if charged {
		err = s.markPaid(ctx, booking, charge, now)
	} else {
		err = s.recordPaymentID(ctx, booking, charge.PaymentID)
		result.ClientSecret = charge.ClientSecret
	}

	notify := booking.Status == StatusConfirmed
	if err != nil {
		if !errors.Is(err, ErrBookingStateChanged) {
			s.abandon(ctx, booking, charge.PaymentID, charged, true, err)
			return nil, err
		}
		settled, serr := s.settledByWebhook(ctx, booking, charge)
		if serr != nil {
			return nil, serr
		}
		booking = settled
		result.Booking = settled
		// The webhook path already sent the confirmation
		notify = false
	}

	ids, numbers := seatRefs(booking)
	s.publish(ctx, booking.EventID, realtime.KindSeatBooked, realtime.SeatChange{
		SeatIDs:     ids,
		SeatNumbers: numbers,
		Status:      string(seats.StatusBooked),
		BookingID:   booking.ID.String(),
		UserID:      booking.UserID.String(),
	})

	s.Logger.LogBookingCreated(ctx, booking.ID.String(), booking.BookingReference,
		booking.EventID.String(), booking.UserID.String(), string(booking.Status))
	if notify {
		s.notifyAsync(ctx, booking, event, true)
	}
	return result, nil
}

func validateCreate(cmd CreateBookingCommand) ([]uuid.UUID, error) {
	if cmd.UserID == uuid.Nil {
		return nil, apperr.Validation("user is required")
	}
	if cmd.EventID == uuid.Nil {
		return nil, apperr.Validation("event is required")
	}
	if len(cmd.Seats) == 0 {
		return nil, apperr.Validation("at least one seat is required")
	}
	if !cmd.PaymentMethod.IsValid() {
		return nil, apperr.Validation("unsupported payment method %q", cmd.PaymentMethod)
	}

	ids := make([]uuid.UUID, 0, len(cmd.Seats))
	seen := make(map[uuid.UUID]struct{}, len(cmd.Seats))
	for _, sel := range cmd.Seats {
		if sel.SeatID == uuid.Nil {
			return nil, apperr.Validation("seat id is required")
		}
		if _, dup := seen[sel.SeatID]; dup {
			return nil, apperr.Validation("seat %s selected more than once", sel.SeatID).
				WithDetail("seat_id", sel.SeatID.String())
		}
		seen[sel.SeatID] = struct{}{}
		ids = append(ids, sel.SeatID)
	}
	return ids, nil
}

// seatUnavailable reports a ledger conflict in booking terms.
func seatUnavailable(err error) error {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindSeatConflict {
		return err
	}
	seatID, _ := e.Details["seat_id"].(string)
	seatNumber, _ := e.Details["seat_number"].(string)
	out := apperr.SeatUnavailable(seatID, seatNumber)
	out.Err = err
	return out
}

// priceSeats snapshots the committed seats onto the booking and prices them
// from the seats' own prices.
func (s *service) priceSeats(booking *Booking, committed []seats.Seat, selections []SeatSelection) (pricing.Breakdown, error) {
	prices := make([]decimal.Decimal, len(committed))
	booking.Seats = make([]BookedSeat, len(committed))
	for i, seat := range committed {
		if quoted := selections[i].Price; quoted != nil && !quoted.Equal(seat.Price) {
			return pricing.Breakdown{}, apperr.Validation("price for seat %s changed to %s", seat.SeatNumber, pricing.Display(seat.Price)).
				WithDetail("seat_id", seat.ID.String()).
				WithDetail("seat_number", seat.SeatNumber)
		}
		prices[i] = seat.Price
		booking.Seats[i] = BookedSeat{
			ID:         uuid.New(),
			BookingID:  booking.ID,
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			Row:        seat.Row,
			Section:    seat.Section,
			Type:       seat.Type,
			Price:      seat.Price,
			Position:   i,
		}
	}
	return pricing.Price(prices)
}

// persist stores the booking under a fresh reference, regenerating it while
// the store reports a collision.
func (s *service) persist(ctx context.Context, booking *Booking, event *events.Event, now time.Time) error {
	for attempt := 1; attempt <= s.cfg.ReferenceMaxAttempts; attempt++ {
		reference, err := s.References.NewReference()
		if err != nil {
			return fmt.Errorf("generate reference: %w", err)
		}
		booking.BookingReference = reference

		if s.Signer != nil {
			token, err := s.Signer.Sign(VerificationPayload{
				BookingID:        booking.ID.String(),
				BookingReference: reference,
				EventID:          booking.EventID.String(),
				UserID:           booking.UserID.String(),
			}, now, event.Date.Add(s.cfg.CheckInGrace))
			if err != nil {
				return fmt.Errorf("sign verification payload: %w", err)
			}
			booking.VerificationToken = token
		}

		err = s.Repo.CreateBooking(ctx, booking)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return fmt.Errorf("create booking: %w", err)
		}
		s.Logger.Warn("Booking reference collision, regenerating",
			"reference", reference, "attempt", attempt)
	}
	return apperr.Newf(apperr.KindReferenceGenerationFailed,
		"could not generate a unique booking reference after %d attempts", s.cfg.ReferenceMaxAttempts)
}

func (s *service) markPaid(ctx context.Context, booking *Booking, charge *payments.ChargeResult, now time.Time) error {
	status := StatusConfirmed
	paid := PaymentPaid
	patch := Patch{
		Status:        &status,
		PaymentStatus: &paid,
		PaymentID:     &charge.PaymentID,
		TransactionID: &charge.TransactionID,
		PaidAt:        &now,
	}
	if err := s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: StatusPending}, patch); err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	patch.Apply(booking)
	s.Logger.LogPaymentConfirmed(ctx, booking.ID.String(), charge.TransactionID)
	return nil
}

func (s *service) recordPaymentID(ctx context.Context, booking *Booking, paymentID string) error {
	if err := s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: StatusPending}, Patch{PaymentID: &paymentID}); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	booking.PaymentID = paymentID
	return nil
}

// settledByWebhook resolves a create that lost the race to a payment
// webhook. A confirmed booking is the create's result; anything else fails
// the create, and a charge that went through is returned to the customer.
func (s *service) settledByWebhook(ctx context.Context, booking *Booking, charge *payments.ChargeResult) (*Booking, error) {
	current, err := s.getBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusConfirmed {
		return current, nil
	}
	if current.PaymentStatus == PaymentFailed {
		return nil, apperr.New(apperr.KindPaymentFailed, "payment failed").
			WithDetail("booking_id", booking.ID.String())
	}

	if charge.Status == payments.ChargeSucceeded && charge.PaymentID != "" {
		if rerr := s.Gateway.Refund(context.WithoutCancel(ctx), charge.PaymentID, booking.FinalAmount); rerr != nil {
			s.Logger.LogCompensation(ctx, "refund closed booking", booking.ID.String(), ErrBookingStateChanged, rerr)
		}
	}
	return nil, apperr.InvalidState("booking was %s while its payment was processing", current.Status)
}

// CANCEL

func (s *service) CancelBooking(ctx context.Context, cmd CancelBookingCommand) (*Booking, error) {
	booking, err := s.getBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != cmd.RequesterID && cmd.RequesterRole != users.RoleAdmin {
		return nil, apperr.Forbidden("not authorized to cancel this booking")
	}
	switch booking.Status {
	case StatusCancelled, StatusRefunded:
		return nil, apperr.New(apperr.KindAlreadyCancelled, "booking is already cancelled")
	case StatusExpired:
		return nil, apperr.InvalidState("booking has expired")
	}

	event, err := s.loadEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "Cancelled by user"
	}
	status := StatusCancelled
	patch := Patch{Status: &status, CancellationReason: &reason, CancelledAt: &now}

	refund := decimal.Zero
	if booking.PaymentStatus == PaymentPaid {
		refund = pricing.Refund(booking.FinalAmount, pricing.HoursUntil(event.Date, now))
		if refund.IsPositive() {
			refunded := PaymentRefunded
			patch.RefundAmount = &refund
			patch.PaymentStatus = &refunded
			patch.RefundedAt = &now
		}
	}

	if err := s.closeBooking(ctx, booking, patch, true, realtime.KindBookingCancelled, reason); err != nil {
		if errors.Is(err, ErrBookingStateChanged) {
			return nil, s.cancelConflict(ctx, booking.ID)
		}
		return nil, err
	}

	if refund.IsPositive() && booking.PaymentID != "" {
		if err := s.Gateway.Refund(context.WithoutCancel(ctx), booking.PaymentID, refund); err != nil {
			s.Logger.ErrorWithContext(ctx, "Gateway refund failed", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
				"amount":     pricing.Display(refund),
			})
		}
	}

	s.Logger.LogBookingCancelled(ctx, booking.ID.String(), booking.EventID.String(),
		cmd.RequesterID.String(), pricing.Display(refund))
	s.notifyAsync(ctx, booking, event, false)
	return booking, nil
}

// cancelConflict explains why a cancel lost a race.
func (s *service) cancelConflict(ctx context.Context, id uuid.UUID) error {
	current, err := s.getBooking(ctx, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case StatusCancelled, StatusRefunded:
		return apperr.New(apperr.KindAlreadyCancelled, "booking is already cancelled")
	}
	return apperr.InvalidState("booking changed while it was being cancelled")
}

// closeBooking moves a seat-holding booking to a terminal status and frees
// its seats. When the seats cannot be freed the status change is reverted so
// the booking keeps owning them. counted says whether the event counters
// include this booking.
func (s *service) closeBooking(ctx context.Context, booking *Booking, patch Patch, counted bool, kind realtime.Kind, reason string) error {
	ctx = context.WithoutCancel(ctx)
	prevStatus, prevPayment := booking.Status, booking.PaymentStatus

	if err := s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: prevStatus}, patch); err != nil {
		return err
	}

	if err := s.releaseBookedSeats(ctx, booking); err != nil {
		revert := Patch{Status: &prevStatus, PaymentStatus: &prevPayment, ClearCancellation: true}
		rerr := s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: *patch.Status}, revert)
		s.Logger.LogCompensation(ctx, "revert booking status", booking.ID.String(), err, rerr)
		return fmt.Errorf("release seats: %w", err)
	}
	patch.Apply(booking)

	if counted {
		if err := s.Events.IncrementEventCounters(ctx, booking.EventID, -1, booking.FinalAmount.Neg()); err != nil {
			s.Logger.ErrorWithContext(ctx, "Failed to decrement event counters", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
				"event_id":   booking.EventID.String(),
			})
		}
	}

	ids, numbers := seatRefs(booking)
	s.Logger.LogSeatsReleased(ctx, booking.EventID.String(), numbers, reason)
	s.publish(ctx, booking.EventID, kind, realtime.SeatChange{
		SeatIDs:     ids,
		SeatNumbers: numbers,
		Status:      string(seats.StatusAvailable),
		BookingID:   booking.ID.String(),
		UserID:      booking.UserID.String(),
		Reason:      reason,
	})
	return nil
}

func (s *service) releaseBookedSeats(ctx context.Context, booking *Booking) error {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		if _, err = s.Ledger.ReleaseBooked(ctx, booking.EventID, booking.SeatIDs()); err == nil {
			return nil
		}
	}
	return err
}

// releaseCommitted undoes a commit for a booking that was never stored.
func (s *service) releaseCommitted(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, bookingID uuid.UUID, cause error) {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		if _, err = s.Ledger.ReleaseBooked(ctx, eventID, seatIDs); err == nil {
			break
		}
	}
	s.Logger.LogCompensation(ctx, "release committed seats", bookingID.String(), cause, err)
}

// failPayment cancels a pending booking whose charge failed.
func (s *service) failPayment(ctx context.Context, booking *Booking, reason string, counted bool, cause error) {
	now := s.Now()
	status := StatusCancelled
	failed := PaymentFailed
	patch := Patch{Status: &status, PaymentStatus: &failed, CancellationReason: &reason, CancelledAt: &now}
	err := s.closeBooking(ctx, booking, patch, counted, realtime.KindSeatReleased, reason)
	s.Logger.LogCompensation(ctx, "cancel unpaid booking", booking.ID.String(), cause, err)
}

// abandon cancels a stored booking after a failure of our own. charged says
// the gateway took the money, which is then refunded in full; counted says
// the event counters include the booking.
func (s *service) abandon(ctx context.Context, booking *Booking, paymentID string, charged, counted bool, cause error) {
	now := s.Now()
	status := StatusCancelled
	reason := "booking could not be completed"
	patch := Patch{Status: &status, CancellationReason: &reason, CancelledAt: &now}

	if charged {
		refunded := PaymentRefunded
		amount := booking.FinalAmount
		patch.PaymentStatus = &refunded
		patch.RefundAmount = &amount
		patch.RefundedAt = &now
	}

	err := s.closeBooking(ctx, booking, patch, counted, realtime.KindSeatReleased, reason)
	s.Logger.LogCompensation(ctx, "cancel incomplete booking", booking.ID.String(), cause, err)

	if !charged || paymentID == "" {
		return
	}
	if errors.Is(err, ErrBookingStateChanged) {
		// Confirmed by the webhook in the meantime; the booking keeps the payment
		if current, gerr := s.getBooking(ctx, booking.ID); gerr == nil && current.Status == StatusConfirmed {
			return
		}
	}
	if rerr := s.Gateway.Refund(context.WithoutCancel(ctx), paymentID, booking.FinalAmount); rerr != nil {
		s.Logger.LogCompensation(ctx, "refund incomplete booking", booking.ID.String(), cause, rerr)
	}
}

// PAYMENT

func (s *service) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Booking, error) {
	booking, err := s.getBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != cmd.RequesterID {
		return nil, apperr.Forbidden("not authorized to confirm payment for this booking")
	}
	return s.confirm(ctx, booking, cmd.TransactionID)
}

func (s *service) CompletePayment(ctx context.Context, bookingID uuid.UUID, transactionID string) (*Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, booking, transactionID)
}

func (s *service) confirm(ctx context.Context, booking *Booking, transactionID string) (*Booking, error) {
	if booking.Status == StatusConfirmed && booking.PaymentStatus == PaymentPaid {
		if transactionID == "" || transactionID == booking.TransactionID {
			return booking, nil
		}
		return nil, apperr.InvalidState("booking was already paid with another transaction")
	}
	if booking.Status != StatusPending && booking.Status != StatusConfirmed {
		return nil, apperr.InvalidState("booking is %s", booking.Status)
	}
	if transactionID == "" {
		return nil, apperr.Validation("transaction id is required")
	}

	now := s.Now()
	status := StatusConfirmed
	paid := PaymentPaid
	patch := Patch{Status: &status, PaymentStatus: &paid, TransactionID: &transactionID, PaidAt: &now}
	if err := s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: booking.Status}, patch); err != nil {
		if errors.Is(err, ErrBookingStateChanged) {
			current, gerr := s.getBooking(ctx, booking.ID)
			if gerr != nil {
				return nil, gerr
			}
			if current.Status == StatusConfirmed && current.TransactionID == transactionID {
				return current, nil
			}
			return nil, apperr.InvalidState("booking changed while confirming payment")
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	patch.Apply(booking)

	s.Logger.LogPaymentConfirmed(ctx, booking.ID.String(), transactionID)
	s.notifyAsync(ctx, booking, nil, true)
	return booking, nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID, reason string) (*Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == StatusCancelled && booking.PaymentStatus == PaymentFailed {
		return booking, nil
	}
	if booking.Status != StatusPending {
		return nil, apperr.InvalidState("booking is %s", booking.Status)
	}

	if reason == "" {
		reason = "payment failed"
	}
	now := s.Now()
	status := StatusCancelled
	failed := PaymentFailed
	patch := Patch{Status: &status, PaymentStatus: &failed, CancellationReason: &reason, CancelledAt: &now}
	if err := s.closeBooking(ctx, booking, patch, true, realtime.KindSeatReleased, reason); err != nil {
		if errors.Is(err, ErrBookingStateChanged) {
			return nil, apperr.InvalidState("booking changed while recording payment failure")
		}
		return nil, err
	}
	return booking, nil
}

// CHECK-IN

func (s *service) VerifyAndCheckIn(ctx context.Context, reference string) (*Booking, error) {
	booking, err := s.Repo.FindBookingByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, apperr.NotFound("booking %s not found", reference)
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking.Status != StatusConfirmed {
		return nil, apperr.InvalidState("booking is not confirmed")
	}
	if booking.CheckedIn {
		return nil, alreadyCheckedIn(booking)
	}

	now := s.Now()
	notCheckedIn, checkedIn := false, true
	patch := Patch{CheckedIn: &checkedIn, CheckedInAt: &now}
	err = s.Repo.UpdateBooking(ctx, booking.ID, Expectation{Status: StatusConfirmed, CheckedIn: &notCheckedIn}, patch)
	if err != nil {
		if errors.Is(err, ErrBookingStateChanged) {
			current, gerr := s.getBooking(ctx, booking.ID)
			if gerr != nil {
				return nil, gerr
			}
			if current.CheckedIn {
				return nil, alreadyCheckedIn(current)
			}
			return nil, apperr.InvalidState("booking is not confirmed")
		}
		return nil, fmt.Errorf("check in: %w", err)
	}
	patch.Apply(booking)

	s.Logger.LogCheckIn(ctx, booking.ID.String(), booking.BookingReference)
	return booking, nil
}

func alreadyCheckedIn(b *Booking) error {
	e := apperr.New(apperr.KindAlreadyCheckedIn, "booking already checked in")
	if b.CheckedInAt != nil {
		e.WithDetail("checked_in_at", b.CheckedInAt.Format(time.RFC3339))
	}
	return e
}

func (s *service) ResolveReference(code string) (string, error) {
	code = strings.TrimSpace(code)
	if IsReference(code) {
		return code, nil
	}
	if s.Signer != nil {
		if payload, err := s.Signer.Parse(code, s.Now()); err == nil {
			return payload.BookingReference, nil
		}
	}
	return "", apperr.Validation("unrecognised booking code")
}

// READS

func (s *service) GetBooking(ctx context.Context, id, requesterID uuid.UUID, role users.Role) (*BookingResult, error) {
	booking, err := s.ownedBooking(ctx, id, requesterID, role)
	if err != nil {
		return nil, err
	}
	result := &BookingResult{Booking: booking}
	if event, err := s.Events.GetEvent(ctx, booking.EventID); err == nil {
		result.Event = summarize(event)
	}
	return result, nil
}

func (s *service) ListUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error) {
	query.UserID = &userID
	return s.list(ctx, query)
}

func (s *service) ListAllBookings(ctx context.Context, query BookingListQuery) (*PaginatedBookings, error) {
	query.UserID = nil
	return s.list(ctx, query)
}

func (s *service) list(ctx context.Context, query BookingListQuery) (*PaginatedBookings, error) {
	query.Normalize()
	list, total, err := s.Repo.ListBookings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if list == nil {
		list = []Booking{}
	}
	return &PaginatedBookings{
		Bookings:   list,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}, nil
}

func (s *service) QRCode(ctx context.Context, id, requesterID uuid.UUID, role users.Role) ([]byte, error) {
	booking, err := s.ownedBooking(ctx, id, requesterID, role)
	if err != nil {
		return nil, err
	}
	if booking.Status != StatusConfirmed {
		return nil, apperr.InvalidState("booking is not confirmed")
	}
	png, err := RenderQRCode(booking, s.cfg.QRCodeSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}

// EXPIRY

func (s *service) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	expired, err := s.Repo.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired bookings: %w", err)
	}

	count := 0
	for i := range expired {
		booking := &expired[i]
		status := StatusExpired
		reason := "payment window expired"
		patch := Patch{Status: &status, CancellationReason: &reason, CancelledAt: &now}

		err := s.closeBooking(ctx, booking, patch, true, realtime.KindSeatReleased, reason)
		switch {
		case err == nil:
			count++
		case errors.Is(err, ErrBookingStateChanged):
			// Paid or cancelled since it was listed
		default:
			s.Logger.ErrorWithContext(ctx, "Failed to expire booking", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
			})
		}
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
	}
	return count, nil
}

// HELPERS

func (s *service) getBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := s.Repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, apperr.NotFound("booking %s not found", id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (s *service) ownedBooking(ctx context.Context, id, requesterID uuid.UUID, role users.Role) (*Booking, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != requesterID && role != users.RoleAdmin {
		return nil, apperr.Forbidden("not authorized to view this booking")
	}
	return booking, nil
}

func (s *service) loadEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	event, err := s.Events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *service) currency(requested string) string {
	if requested != "" {
		return strings.ToLower(requested)
	}
	return s.cfg.Currency
}

func (s *service) publish(ctx context.Context, eventID uuid.UUID, kind realtime.Kind, payload interface{}) {
	if err := realtime.Publish(ctx, s.Publisher, eventID, kind, payload); err != nil {
		s.Logger.Warn("Failed to publish booking change",
			"event_id", eventID.String(), "kind", string(kind), "error", err.Error())
	}
}

// notifyAsync sends the confirmation or cancellation email without holding
// up the caller. Failures are logged only.
func (s *service) notifyAsync(ctx context.Context, booking *Booking, event *events.Event, confirmed bool) {
	if s.Mailer == nil {
		return
	}
	snapshot := *booking
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		ev := event
		if ev == nil {
			loaded, err := s.Events.GetEvent(ctx, snapshot.EventID)
			if err != nil {
				s.Logger.ErrorWithContext(ctx, "Failed to load event for booking email", err, map[string]interface{}{
					"booking_id": snapshot.ID.String(),
				})
				return
			}
			ev = loaded
		}

		var err error
		if confirmed {
			err = s.Mailer.NotifyBookingConfirmed(ctx, &snapshot, ev)
		} else {
			err = s.Mailer.NotifyBookingCancelled(ctx, &snapshot, ev)
		}
		if err != nil {
			s.Logger.ErrorWithContext(ctx, "Failed to send booking email", err, map[string]interface{}{
				"booking_id": snapshot.ID.String(),
				"confirmed":  confirmed,
			})
		}
	}()
}

func seatRefs(b *Booking) ([]string, []string) {
	ids := make([]string, len(b.Seats))
	for i, seat := range b.Seats {
		ids[i] = seat.SeatID.String()
	}
	return ids, b.SeatNumbers()
}
