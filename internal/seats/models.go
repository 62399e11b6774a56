package seats

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusSelected  Status = "selected"
	StatusLocked    Status = "locked"
	StatusBooked    Status = "booked"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusSelected, StatusLocked, StatusBooked:
		return true
	}
	return false
}

type SeatType string

const (
	SeatTypeVIP      SeatType = "VIP"
	SeatTypePremium  SeatType = "Premium"
	SeatTypeStandard SeatType = "Standard"
	SeatTypeEconomy  SeatType = "Economy"
)

// SeatTypes lists every seat type a layout can contain.
var SeatTypes = []SeatType{SeatTypeVIP, SeatTypePremium, SeatTypeStandard, SeatTypeEconomy}

func (t SeatType) Valid() bool {
	for _, known := range SeatTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PriceTable maps a seat type to its ticket price.
type PriceTable map[SeatType]decimal.Decimal

// Seat is one bookable unit of an event.
type Seat struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_event_seat_number" json:"event_id"`
	SeatNumber  string          `gorm:"size:16;not null;uniqueIndex:idx_event_seat_number" json:"seat_number"`
	Row         string          `gorm:"size:4;not null" json:"row"`
	Section     string          `gorm:"size:32;not null" json:"section"`
	Position    int             `gorm:"not null" json:"position"`
	Type        SeatType        `gorm:"type:varchar(16);not null" json:"type"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Status      Status          `gorm:"type:varchar(16);not null;default:'available';index" json:"status"`
	HolderID    *uuid.UUID      `gorm:"type:uuid" json:"holder_id,omitempty"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Seat) TableName() string {
	return "seats"
}

// State is the mutable part of a seat that the ledger transitions.
type State struct {
	Status      Status
	HolderID    *uuid.UUID
	LockedUntil *time.Time
}

// Consistent reports whether st satisfies the seats table constraint: a
// locked seat has a holder and a deadline, any other status has neither.
func (st State) Consistent() bool {
	if st.Status == StatusLocked {
		return st.HolderID != nil && st.LockedUntil != nil
	}
	return st.HolderID == nil && st.LockedUntil == nil
}

// State returns the seat's current state.
func (s *Seat) State() State {
	return State{Status: s.Status, HolderID: s.HolderID, LockedUntil: s.LockedUntil}
}

// EffectiveStatus treats an expired lock and an advisory selection as
// available.
func (s *Seat) EffectiveStatus(now time.Time) Status {
	switch s.Status {
	case StatusSelected:
		return StatusAvailable
	case StatusLocked:
		if s.lockExpired(now) {
			return StatusAvailable
		}
	}
	return s.Status
}

func (s *Seat) lockExpired(now time.Time) bool {
	return s.LockedUntil == nil || !s.LockedUntil.After(now)
}

func (s *Seat) heldBy(holder uuid.UUID) bool {
	return s.HolderID != nil && *s.HolderID == holder
}

// Apply sets the seat's state from st.
func (s *Seat) Apply(st State) {
	s.Status = st.Status
	s.HolderID = st.HolderID
	s.LockedUntil = st.LockedUntil
}
