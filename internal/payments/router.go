package payments

import (
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	payments := rg.Group("/payments")
	{
		// Authenticated by the Stripe signature, not a JWT
		payments.POST("/webhook", controller.HandleStripeWebhook) // POST /api/v1/payments/webhook

		payments.GET("/methods", middleware.JWTAuthWithConfig(cfg), controller.GetPaymentMethods) // GET /api/v1/payments/methods
	}
}
