package bookings

import (
	"net/http"
	"strings"

	"eventix/internal/shared/apperr"
	"eventix/internal/shared/middleware"
	"eventix/internal/shared/utils/request"
	"eventix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func bookingIDParam(ctx *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid booking ID").WithDetail("id", ctx.Param("id"))
	}
	return id, nil
}

// CreateBooking handles POST /api/v1/bookings
func (c *Controller) CreateBooking(ctx *gin.Context) {
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	var req CreateBookingRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	result, err := c.service.CreateBooking(ctx.Request.Context(), CreateBookingCommand{
		UserID:          userID,
		EventID:         req.EventID,
		Seats:           req.Seats,
		PaymentMethod:   PaymentMethod(req.PaymentMethod),
		PaymentMethodID: req.PaymentMethodID,
		Currency:        req.Currency,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to create booking", err)
		return
	}

	message := "Booking confirmed successfully"
	if result.Booking.Status == StatusPending {
		message = "Booking created, awaiting payment"
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, message, result, nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	bookingID, err := bookingIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", err)
		return
	}
	userID, role, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	result, err := c.service.GetBooking(ctx.Request.Context(), bookingID, userID, role)
	if err != nil {
		response.RespondError(ctx, "Failed to get booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", result, nil)
}

// GetUserBookings handles GET /api/v1/bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	result, err := c.service.ListUserBookings(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondError(ctx, "Failed to get bookings", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}

// GetAllBookings handles GET /api/v1/admin/bookings
func (c *Controller) GetAllBookings(ctx *gin.Context) {
	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	result, err := c.service.ListAllBookings(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, "Failed to get bookings", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}

// CancelBooking handles PUT /api/v1/bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	bookingID, err := bookingIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", err)
		return
	}
	userID, role, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	// The body is optional here
	var req CancelBookingRequest
	if ctx.Request.ContentLength != 0 {
		if err := request.BindJSON(ctx, &req); err != nil {
			response.RespondValidationError(ctx, err)
			return
		}
	}

	booking, err := c.service.CancelBooking(ctx.Request.Context(), CancelBookingCommand{
		BookingID:     bookingID,
		RequesterID:   userID,
		RequesterRole: role,
		Reason:        req.Reason,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to cancel booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled successfully", booking, nil)
}

// ConfirmPayment handles PUT /api/v1/bookings/:id/confirm-payment
func (c *Controller) ConfirmPayment(ctx *gin.Context) {
	bookingID, err := bookingIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", err)
		return
	}
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	var req ConfirmPaymentRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	booking, err := c.service.ConfirmPayment(ctx.Request.Context(), ConfirmPaymentCommand{
		BookingID:     bookingID,
		RequesterID:   userID,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to confirm payment", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment confirmed successfully", booking, nil)
}

// VerifyBooking handles POST /api/v1/bookings/verify
func (c *Controller) VerifyBooking(ctx *gin.Context) {
	var req VerifyBookingRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	code := strings.TrimSpace(req.BookingReference)
	if code == "" {
		code = req.QRPayload
	}
	reference, err := c.service.ResolveReference(code)
	if err != nil {
		response.RespondError(ctx, "Invalid booking code", err)
		return
	}

	booking, err := c.service.VerifyAndCheckIn(ctx.Request.Context(), reference)
	if err != nil {
		response.RespondError(ctx, "Check-in failed", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking checked in successfully", booking, nil)
}

// GetQRCode handles GET /api/v1/bookings/:id/qrcode
func (c *Controller) GetQRCode(ctx *gin.Context) {
	bookingID, err := bookingIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", err)
		return
	}
	userID, role, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	png, err := c.service.QRCode(ctx.Request.Context(), bookingID, userID, role)
	if err != nil {
		response.RespondError(ctx, "Failed to render QR code", err)
		return
	}

	ctx.Header("Cache-Control", "private, max-age=300")
	ctx.Data(http.StatusOK, "image/png", png)
}
