package bookings

import (
	"context"

	"eventix/internal/payments"
	"eventix/internal/shared/apperr"
	"eventix/pkg/logger"

	"github.com/google/uuid"
)

// PaymentAdapter feeds gateway webhooks into the booking service.
type PaymentAdapter struct {
	service Service
	logger  *logger.Logger
}

var _ payments.BookingPayments = (*PaymentAdapter)(nil)

func NewPaymentAdapter(service Service, log *logger.Logger) *PaymentAdapter {
	return &PaymentAdapter{service: service, logger: log}
}

func (a *PaymentAdapter) CompletePayment(ctx context.Context, bookingID uuid.UUID, transactionID string) error {
	_, err := a.service.CompletePayment(ctx, bookingID, transactionID)
	return a.settle(ctx, "payment succeeded", bookingID, err)
}

func (a *PaymentAdapter) FailPayment(ctx context.Context, bookingID uuid.UUID, reason string) error {
	_, err := a.service.MarkPaymentFailed(ctx, bookingID, reason)
	return a.settle(ctx, "payment failed", bookingID, err)
}

// settle swallows outcomes that arrive after the booking moved on, so the
// gateway stops redelivering them.
func (a *PaymentAdapter) settle(ctx context.Context, outcome string, bookingID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidState, apperr.KindAlreadyCancelled, apperr.KindNotFound:
		a.logger.WarnContext(ctx, "Ignoring stale payment outcome",
			"outcome", outcome,
			"booking_id", bookingID.String(),
			"error", err.Error())
		return nil
	}
	return err
}
