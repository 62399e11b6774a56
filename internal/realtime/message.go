// Package realtime fans seat and booking changes out to everyone viewing an
// event. Each event is a topic; messages are delivered in publish order to
// each subscriber and never stored.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSeatLocked       Kind = "seat-locked"
	KindSeatReleased     Kind = "seat-released"
	KindSeatBooked       Kind = "seat-booked"
	KindBookingCancelled Kind = "booking-cancelled"

	// Selection hints from other viewers. They never change seat state.
	KindSeatSelected   Kind = "seat-selected"
	KindSeatDeselected Kind = "seat-deselected"

	// KindError is only ever written to the client that caused it.
	KindError Kind = "error"
)

// Advisory reports whether the kind is a selection hint that is not echoed
// back to the subscriber that published it.
func (k Kind) Advisory() bool {
	return k == KindSeatSelected || k == KindSeatDeselected
}

// Message is the unit delivered on an event topic.
type Message struct {
	EventID   uuid.UUID       `json:"eventId"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage encodes payload and stamps the message with the current time.
func NewMessage(eventID uuid.UUID, kind Kind, payload interface{}) (Message, error) {
	msg := Message{
		EventID:   eventID,
		Kind:      kind,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// Publisher sends a message to every subscriber of its event.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// SeatChange is the payload of the authoritative seat kinds.
type SeatChange struct {
	SeatIDs     []string   `json:"seatIds"`
	SeatNumbers []string   `json:"seatNumbers"`
	Status      string     `json:"status"`
	HolderID    string     `json:"holderId,omitempty"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
	BookingID   string     `json:"bookingId,omitempty"`
	UserID      string     `json:"userId,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// SeatSelection is the payload of the advisory kinds.
type SeatSelection struct {
	SeatID     string `json:"seatId"`
	SeatNumber string `json:"seatNumber,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

// Publish builds and publishes a message, returning the encoding or
// transport error.
func Publish(ctx context.Context, p Publisher, eventID uuid.UUID, kind Kind, payload interface{}) error {
	if p == nil {
		return nil
	}
	msg, err := NewMessage(eventID, kind, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
