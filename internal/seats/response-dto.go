package seats

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SeatResponse struct {
	ID          uuid.UUID       `json:"id"`
	SeatNumber  string          `json:"seat_number"`
	Row         string          `json:"row"`
	Section     string          `json:"section"`
	Position    int             `json:"position"`
	Type        SeatType        `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Status      Status          `json:"status"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	HeldByYou   bool            `json:"held_by_you,omitempty"`
}

type SeatMapSummary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Locked    int `json:"locked"`
	Booked    int `json:"booked"`
}

type SeatMapResponse struct {
	EventID uuid.UUID      `json:"event_id"`
	Seats   []SeatResponse `json:"seats"`
	Summary SeatMapSummary `json:"summary"`
}

type SeatLockResponse struct {
	EventID     uuid.UUID       `json:"event_id"`
	Seats       []SeatResponse  `json:"seats"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	LockedUntil time.Time       `json:"locked_until"`
	TTL         int             `json:"ttl_seconds"`
}

type SeatUnlockResponse struct {
	EventID  uuid.UUID      `json:"event_id"`
	Released []SeatResponse `json:"released"`
}

// toSeatResponse renders the seat as viewer sees it at now. Expired locks
// and selections read as available and holders are never exposed.
func toSeatResponse(seat *Seat, viewer uuid.UUID, now time.Time) SeatResponse {
	status := seat.EffectiveStatus(now)
	resp := SeatResponse{
		ID:         seat.ID,
		SeatNumber: seat.SeatNumber,
		Row:        seat.Row,
		Section:    seat.Section,
		Position:   seat.Position,
		Type:       seat.Type,
		Price:      seat.Price,
		Status:     status,
	}
	if status == StatusLocked {
		resp.LockedUntil = seat.LockedUntil
		resp.HeldByYou = viewer != uuid.Nil && seat.heldBy(viewer)
	}
	return resp
}
