package bookings

import (
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"
	"eventix/internal/users"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	// GATE CHECK-IN

	gate := rg.Group("/bookings")
	gate.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireRoles(users.RoleOrganizer, users.RoleAdmin))
	{
		gate.POST("/verify", controller.VerifyBooking) // POST /api/v1/bookings/verify
	}

	// USER BOOKINGS

	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuthWithConfig(cfg))
	{
		bookings.POST("", controller.CreateBooking)                     // POST /api/v1/bookings
		bookings.GET("", controller.GetUserBookings)                    // GET /api/v1/bookings
		bookings.GET("/:id", controller.GetBooking)                     // GET /api/v1/bookings/:id
		bookings.GET("/:id/qrcode", controller.GetQRCode)               // GET /api/v1/bookings/:id/qrcode
		bookings.PUT("/:id/cancel", controller.CancelBooking)           // PUT /api/v1/bookings/:id/cancel
		bookings.PUT("/:id/confirm-payment", controller.ConfirmPayment) // PUT /api/v1/bookings/:id/confirm-payment
	}

	// ADMIN

	admin := rg.Group("/admin/bookings")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.GetAllBookings) // GET /api/v1/admin/bookings
	}
}
