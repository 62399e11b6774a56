package notifications

import (
	"context"
	"fmt"
	"strings"

	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/pricing"
)

const eventDateLayout = "Mon, 02 Jan 2006 15:04 MST"

// BookingMailer turns booking outcomes into emails.
type BookingMailer struct {
	dispatcher Dispatcher
}

var _ bookings.Mailer = (*BookingMailer)(nil)

func NewBookingMailer(dispatcher Dispatcher) *BookingMailer {
	return &BookingMailer{dispatcher: dispatcher}
}

func (m *BookingMailer) NotifyBookingConfirmed(ctx context.Context, booking *bookings.Booking, event *events.Event) error {
	n := bookingNotification(booking, event).
		WithType(NotificationTypeBookingConfirmed).
		WithSubject(fmt.Sprintf("Booking confirmed: %s", event.Title)).
		Build()
	return m.dispatcher.Dispatch(ctx, n)
}

func (m *BookingMailer) NotifyBookingCancelled(ctx context.Context, booking *bookings.Booking, event *events.Event) error {
	data := map[string]string{"reason": booking.CancellationReason}
	if booking.RefundAmount != nil && booking.RefundAmount.IsPositive() {
		data["refund_amount"] = pricing.Display(*booking.RefundAmount)
	}
	n := bookingNotification(booking, event).
		WithType(NotificationTypeBookingCancelled).
		WithSubject(fmt.Sprintf("Booking cancelled: %s", event.Title)).
		WithTemplateData(data).
		Build()
	return m.dispatcher.Dispatch(ctx, n)
}

func bookingNotification(booking *bookings.Booking, event *events.Event) *NotificationBuilder {
	return NewNotificationBuilder().
		WithRecipient(booking.UserID, booking.UserEmail, booking.UserName).
		WithBookingContext(booking.ID).
		WithEventContext(booking.EventID).
		WithTemplateData(map[string]string{
			"event_title":       event.Title,
			"event_date":        event.Date.Format(eventDateLayout),
			"venue":             venueLine(event.Venue),
			"booking_reference": booking.BookingReference,
			"seats":             strings.Join(booking.SeatNumbers(), ", "),
			"total_amount":      pricing.Display(booking.FinalAmount),
			"currency":          strings.ToUpper(booking.Currency),
		})
}

func venueLine(v events.Venue) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Name, v.City, v.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
