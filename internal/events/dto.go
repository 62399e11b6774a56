package events

import (
	"time"

	"eventix/internal/seats"

	"github.com/shopspring/decimal"
)

type VenueRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=255"`
	Address string `json:"address" binding:"max=500"`
	City    string `json:"city" binding:"max=100"`
	Country string `json:"country" binding:"max=100"`
}

type CreateEventRequest struct {
	Title             string                             `json:"title" binding:"required,min=3,max=255"`
	Description       string                             `json:"description" binding:"max=2000"`
	Category          string                             `json:"category" binding:"max=64"`
	Venue             VenueRequest                       `json:"venue" binding:"required"`
	Date              time.Time                          `json:"date" binding:"required"`
	Capacity          int                                `json:"capacity" binding:"required,min=1,max=100000"`
	Pricing           map[seats.SeatType]decimal.Decimal `json:"pricing"`
	MaxBookingPerUser int                                `json:"max_booking_per_user" binding:"omitempty,min=1,max=50"`
	Publish           bool                               `json:"publish"`
}

// UpdateEventRequest edits an event. Omitted fields keep their value and
// pricing entries replace only the seat types they name. Capacity is fixed
// once the seat map exists.
type UpdateEventRequest struct {
	Title             *string                            `json:"title" binding:"omitempty,min=3,max=255"`
	Description       *string                            `json:"description" binding:"omitempty,max=2000"`
	Category          *string                            `json:"category" binding:"omitempty,max=64"`
	Venue             *VenueRequest                      `json:"venue"`
	Date              *time.Time                         `json:"date"`
	Pricing           map[seats.SeatType]decimal.Decimal `json:"pricing"`
	MaxBookingPerUser *int                               `json:"max_booking_per_user" binding:"omitempty,min=1,max=50"`
}

type UpdateEventStatusRequest struct {
	Status EventStatus `json:"status" binding:"required,oneof=published cancelled completed"`
}

type EventResponse struct {
	Event
	Bookable bool `json:"bookable"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

func toResponse(e *Event, now time.Time) *EventResponse {
	return &EventResponse{Event: *e, Bookable: e.Bookable(now)}
}
