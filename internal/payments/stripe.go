package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway charges through Stripe PaymentIntents.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = secretKey
	return &StripeGateway{}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

// ConfirmCharge creates a PaymentIntent. With a payment method id it is
// confirmed immediately; otherwise the client secret is returned and the
// webhook reports the outcome.
func (g *StripeGateway) ConfirmCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		Metadata: make(map[string]string, len(req.Metadata)),
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
		params.Confirm = stripe.Bool(true)
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return &ChargeResult{Status: ChargeFailed, FailureReason: err.Error()}, nil
	}
	return chargeResultFromIntent(pi), nil
}

func chargeResultFromIntent(pi *stripe.PaymentIntent) *ChargeResult {
	result := &ChargeResult{
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}
	if pi.LatestCharge != nil {
		result.TransactionID = pi.LatestCharge.ID
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = ChargeSucceeded
		if result.TransactionID == "" {
			result.TransactionID = pi.ID
		}
	case stripe.PaymentIntentStatusCanceled:
		result.Status = ChargeFailed
		result.FailureReason = "payment canceled"
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// A confirmed intent that falls back here was declined
		if pi.LastPaymentError != nil {
			result.Status = ChargeFailed
			result.FailureReason = pi.LastPaymentError.Msg
		} else {
			result.Status = ChargePending
		}
	default:
		result.Status = ChargePending
	}
	return result
}

func (g *StripeGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	if paymentID == "" {
		return fmt.Errorf("payment ID is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentID),
		Amount:        stripe.Int64(MinorUnits(amount)),
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}
