package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"eventix/internal/shared/utils/response"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBytes = 65536

type PaymentMethodInfo struct {
	Method      string `json:"method"`
	DisplayName string `json:"display_name"`
}

var supportedMethods = []PaymentMethodInfo{
	{Method: "card", DisplayName: "Credit / Debit Card"},
	{Method: "wallet", DisplayName: "Wallet"},
	{Method: "upi", DisplayName: "UPI"},
	{Method: "netbanking", DisplayName: "Net Banking"},
}

type Controller struct {
	gateway       Gateway
	bookings      BookingPayments
	webhookSecret string
	logger        *logger.Logger
}

func NewController(gateway Gateway, bookings BookingPayments, webhookSecret string, log *logger.Logger) *Controller {
	return &Controller{
		gateway:       gateway,
		bookings:      bookings,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

func (c *Controller) GetPaymentMethods(ctx *gin.Context) {
	response.RespondJSON(ctx, "success", http.StatusOK, "Payment methods retrieved successfully", gin.H{
		"gateway": c.gateway.Name(),
		"methods": supportedMethods,
	}, nil)
}

// HandleStripeWebhook verifies the Stripe signature and applies payment
// outcomes to the booking named in the intent metadata.
func (c *Controller) HandleStripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBytes))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to read request body", nil, nil)
		return
	}

	sigHeader := ctx.GetHeader("Stripe-Signature")
	if sigHeader == "" || c.webhookSecret == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Missing Stripe-Signature header", nil, nil)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		c.logger.Warn("Rejected Stripe webhook", "error", err.Error())
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid signature", nil, nil)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		response.RespondJSON(ctx, "success", http.StatusOK, "Event type not handled", gin.H{"received": true}, nil)
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to parse event data", nil, nil)
		return
	}

	bookingID, err := uuid.Parse(intent.Metadata["booking_id"])
	if err != nil {
		c.logger.Warn("Stripe webhook without booking id", "payment_intent", intent.ID, "type", string(event.Type))
		response.RespondJSON(ctx, "success", http.StatusOK, "No booking attached", gin.H{"received": true}, nil)
		return
	}

	reqCtx := ctx.Request.Context()
	if event.Type == "payment_intent.succeeded" {
		transactionID := intent.ID
		if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
			transactionID = intent.LatestCharge.ID
		}
		err = c.bookings.CompletePayment(reqCtx, bookingID, transactionID)
	} else {
		reason := "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		} else if event.Type == "payment_intent.canceled" {
			reason = "payment canceled"
		}
		err = c.bookings.FailPayment(reqCtx, bookingID, reason)
	}

	// A non-2xx answer makes Stripe redeliver the event
	if err != nil {
		c.logger.Error("Failed to apply payment outcome",
			"booking_id", bookingID.String(), "type", string(event.Type), "error", err.Error())
		response.RespondError(ctx, "Failed to apply payment outcome", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Webhook processed", gin.H{"received": true}, nil)
}
