package bookings

import (
	"time"

	"eventix/internal/events"
	"eventix/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeatSelection is one seat of a booking request. Price, when given, must
// match the seat's current price.
type SeatSelection struct {
	SeatID uuid.UUID        `json:"seat_id" binding:"required"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

type CreateBookingRequest struct {
	EventID         uuid.UUID       `json:"event_id" binding:"required"`
	Seats           []SeatSelection `json:"seats" binding:"required,min=1,max=50,dive"`
	PaymentMethod   string          `json:"payment_method" binding:"required,payment_method"`
	PaymentMethodID string          `json:"payment_method_id,omitempty" binding:"max=255"`
	Currency        string          `json:"currency,omitempty" binding:"omitempty,len=3,alpha"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

type ConfirmPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,max=255"`
}

// VerifyBookingRequest carries either a booking reference or a scanned QR
// payload.
type VerifyBookingRequest struct {
	BookingReference string `json:"booking_reference,omitempty" binding:"required_without=QRPayload,max=64"`
	QRPayload        string `json:"qr_payload,omitempty" binding:"required_without=BookingReference,max=4096"`
}

type CreateBookingCommand struct {
	UserID          uuid.UUID
	EventID         uuid.UUID
	Seats           []SeatSelection
	PaymentMethod   PaymentMethod
	PaymentMethodID string
	Currency        string
}

type CancelBookingCommand struct {
	BookingID     uuid.UUID
	RequesterID   uuid.UUID
	RequesterRole users.Role
	Reason        string
}

type ConfirmPaymentCommand struct {
	BookingID     uuid.UUID
	RequesterID   uuid.UUID
	TransactionID string
}

type EventSummary struct {
	ID    uuid.UUID    `json:"id"`
	Title string       `json:"title"`
	Date  time.Time    `json:"date"`
	Venue events.Venue `json:"venue"`
}

func summarize(e *events.Event) *EventSummary {
	if e == nil {
		return nil
	}
	return &EventSummary{ID: e.ID, Title: e.Title, Date: e.Date, Venue: e.Venue}
}

// BookingResult is a booking with the event it belongs to. ClientSecret is
// set while the payment still needs a client-side step.
type BookingResult struct {
	Booking      *Booking      `json:"booking"`
	Event        *EventSummary `json:"event,omitempty"`
	ClientSecret string        `json:"client_secret,omitempty"`
}

type PaginatedBookings struct {
	Bookings   []Booking `json:"bookings"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}
