package events

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"eventix/internal/seats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

const DefaultMaxBookingPerUser = 10

// allowedTransitions lists the status changes an organizer may make.
var allowedTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished: {EventStatusCancelled, EventStatusCompleted},
}

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Venue struct {
	Name    string `json:"name" gorm:"size:255;not null"`
	Address string `json:"address" gorm:"size:500"`
	City    string `json:"city" gorm:"size:100"`
	Country string `json:"country" gorm:"size:100"`
}

// Pricing maps seat type to price and is stored as a JSON column.
type Pricing map[seats.SeatType]decimal.Decimal

func (p Pricing) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (p *Pricing) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = Pricing{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("pricing: unsupported column type %T", value)
	}
	return json.Unmarshal(data, p)
}

// PriceTable converts the pricing for seat layout generation.
func (p Pricing) PriceTable() seats.PriceTable {
	out := make(seats.PriceTable, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type Event struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Title             string          `json:"title" gorm:"not null;size:255"`
	Description       string          `json:"description" gorm:"type:text"`
	Category          string          `json:"category" gorm:"size:64;index"`
	Venue             Venue           `json:"venue" gorm:"embedded;embeddedPrefix:venue_"`
	Date              time.Time       `json:"date" gorm:"not null;index"`
	OrganizerID       uuid.UUID       `json:"organizer_id" gorm:"type:uuid;not null;index"`
	Capacity          int             `json:"capacity" gorm:"not null;check:capacity > 0"`
	Pricing           Pricing         `json:"pricing" gorm:"type:jsonb;not null;default:'{}'"`
	Status            EventStatus     `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	MaxBookingPerUser int             `json:"max_booking_per_user" gorm:"not null;default:10"`
	TotalBookings     int             `json:"total_bookings" gorm:"not null;default:0;check:total_bookings >= 0"`
	TotalRevenue      decimal.Decimal `json:"total_revenue" gorm:"type:numeric;not null;default:0"`
	AvailableSeats    int             `json:"available_seats" gorm:"not null;default:0"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

// Bookable reports whether seats of the event may be locked or booked.
func (e *Event) Bookable(now time.Time) bool {
	return e.Status == EventStatusPublished && e.Date.After(now)
}

// EventListQuery filters the public event listing.
type EventListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Category string `form:"category"`
	City     string `form:"city"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Status   string `form:"status" binding:"omitempty,oneof=draft published cancelled completed"`
}

func (q *EventListQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
}
