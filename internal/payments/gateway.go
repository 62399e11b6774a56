// Package payments adapts payment providers to the booking flow.
package payments

import (
	"context"
	"fmt"
	"strings"

	"eventix/internal/shared/config"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	// ChargePending needs a client-side step; the webhook finishes it.
	ChargePending ChargeStatus = "pending"
	ChargeFailed  ChargeStatus = "failed"
)

type ChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethod   string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
}

type ChargeResult struct {
	PaymentID     string
	TransactionID string
	Status        ChargeStatus
	ClientSecret  string
	FailureReason string
}

// Gateway charges and refunds bookings.
type Gateway interface {
	Name() string
	ConfirmCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) error
}

// BookingPayments receives asynchronous payment outcomes.
type BookingPayments interface {
	CompletePayment(ctx context.Context, bookingID uuid.UUID, transactionID string) error
	FailPayment(ctx context.Context, bookingID uuid.UUID, reason string) error
}

// NewGateway picks the provider named by PAYMENT_GATEWAY.
func NewGateway(cfg *config.Config, log *logger.Logger) (Gateway, error) {
	switch strings.ToLower(cfg.Stripe.Gateway) {
	case "stripe":
		return NewStripeGateway(cfg.Stripe.SecretKey)
	case "", "local":
		log.Warn("Using local payment gateway, charges are auto-approved")
		return NewLocalGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Stripe.Gateway)
	}
}

// MinorUnits converts an amount to the currency's smallest unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
