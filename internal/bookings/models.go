package bookings

import (
	"time"

	"eventix/internal/seats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusExpired   Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// Holds reports whether a booking in this status owns its seats.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusConfirmed
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodWallet, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	}
	return false
}

// BookedSeat is the seat as it was when booked. Later edits to the seat or
// event never change it.
type BookedSeat struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	BookingID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	SeatID     uuid.UUID       `gorm:"type:uuid;not null" json:"seat_id"`
	SeatNumber string          `gorm:"size:16;not null" json:"seat_number"`
	Row        string          `gorm:"size:4" json:"row"`
	Section    string          `gorm:"size:32" json:"section"`
	Type       seats.SeatType  `gorm:"type:varchar(16)" json:"type"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Position   int             `gorm:"not null" json:"-"`
}

func (BookedSeat) TableName() string {
	return "booking_seats"
}

type Booking struct {
	ID      uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID uuid.UUID    `gorm:"type:uuid;index;not null" json:"event_id"`
	Seats   []BookedSeat `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"seats"`

	Subtotal    decimal.Decimal `gorm:"type:numeric;not null" json:"subtotal"`
	BookingFee  decimal.Decimal `gorm:"type:numeric;not null" json:"booking_fee"`
	Tax         decimal.Decimal `gorm:"type:numeric;not null" json:"tax"`
	Discount    decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"discount"`
	FinalAmount decimal.Decimal `gorm:"type:numeric;not null" json:"final_amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`

	Status        Status        `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentID     string        `gorm:"size:255;index" json:"payment_id,omitempty"`
	TransactionID string        `gorm:"size:255" json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	BookingReference  string `gorm:"size:32;not null;uniqueIndex" json:"booking_reference"`
	VerificationToken string `gorm:"type:text" json:"verification_token,omitempty"`

	UserName  string `gorm:"size:255" json:"user_name"`
	UserEmail string `gorm:"size:255" json:"user_email"`

	CancellationReason string           `gorm:"size:500" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	RefundAmount       *decimal.Decimal `gorm:"type:numeric" json:"refund_amount,omitempty"`
	RefundedAt         *time.Time       `json:"refunded_at,omitempty"`

	CheckedIn   bool       `gorm:"not null;default:false" json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// SeatIDs returns the booked seat ids in booking order.
func (b *Booking) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Seats))
	for i, s := range b.Seats {
		ids[i] = s.SeatID
	}
	return ids
}

func (b *Booking) SeatNumbers() []string {
	numbers := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		numbers[i] = s.SeatNumber
	}
	return numbers
}

// Expectation is the state a booking must be in for an update to apply.
type Expectation struct {
	Status    Status
	CheckedIn *bool
}

func (e Expectation) Matches(b *Booking) bool {
	if b.Status != e.Status {
		return false
	}
	return e.CheckedIn == nil || b.CheckedIn == *e.CheckedIn
}

// Patch lists the booking fields an update sets. Nil fields are left alone.
type Patch struct {
	Status             *Status
	PaymentStatus      *PaymentStatus
	PaymentID          *string
	TransactionID      *string
	PaidAt             *time.Time
	CancellationReason *string
	CancelledAt        *time.Time
	RefundAmount       *decimal.Decimal
	RefundedAt         *time.Time
	CheckedIn          *bool
	CheckedInAt        *time.Time

	// ClearCancellation empties the cancellation and refund fields. It wins
	// over the corresponding fields above.
	ClearCancellation bool
}

// Apply copies the patch onto b.
func (p Patch) Apply(b *Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		b.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentID != nil {
		b.PaymentID = *p.PaymentID
	}
	if p.TransactionID != nil {
		b.TransactionID = *p.TransactionID
	}
	if p.PaidAt != nil {
		b.PaidAt = p.PaidAt
	}
	if p.CancellationReason != nil {
		b.CancellationReason = *p.CancellationReason
	}
	if p.CancelledAt != nil {
		b.CancelledAt = p.CancelledAt
	}
	if p.RefundAmount != nil {
		b.RefundAmount = p.RefundAmount
	}
	if p.RefundedAt != nil {
		b.RefundedAt = p.RefundedAt
	}
	if p.CheckedIn != nil {
		b.CheckedIn = *p.CheckedIn
	}
	if p.CheckedInAt != nil {
		b.CheckedInAt = p.CheckedInAt
	}
	if p.ClearCancellation {
		b.CancellationReason = ""
		b.CancelledAt = nil
		b.RefundAmount = nil
		b.RefundedAt = nil
	}
}

// Columns renders the patch as a column map for a conditional UPDATE.
func (p Patch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.PaymentStatus != nil {
		cols["payment_status"] = *p.PaymentStatus
	}
	if p.PaymentID != nil {
		cols["payment_id"] = *p.PaymentID
	}
	if p.TransactionID != nil {
		cols["transaction_id"] = *p.TransactionID
	}
	if p.PaidAt != nil {
		cols["paid_at"] = *p.PaidAt
	}
	if p.CancellationReason != nil {
		cols["cancellation_reason"] = *p.CancellationReason
	}
	if p.CancelledAt != nil {
		cols["cancelled_at"] = *p.CancelledAt
	}
	if p.RefundAmount != nil {
		cols["refund_amount"] = *p.RefundAmount
	}
	if p.RefundedAt != nil {
		cols["refunded_at"] = *p.RefundedAt
	}
	if p.CheckedIn != nil {
		cols["checked_in"] = *p.CheckedIn
	}
	if p.CheckedInAt != nil {
		cols["checked_in_at"] = *p.CheckedInAt
	}
	if p.ClearCancellation {
		cols["cancellation_reason"] = ""
		cols["cancelled_at"] = nil
		cols["refund_amount"] = nil
		cols["refunded_at"] = nil
	}
	return cols
}

// BookingListQuery filters booking listings.
type BookingListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled refunded expired"`
	EventID  string `form:"event_id" binding:"omitempty,uuid"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`

	// UserID restricts the listing to one user. Never bound from a query.
	UserID *uuid.UUID `form:"-"`
}

func (q *BookingListQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
}
