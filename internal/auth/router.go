package auth

import (
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers all auth routes
func SetupAuthRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		// Public routes
		auth.POST("/register", controller.Register)
		auth.POST("/login", controller.Login)
		auth.POST("/refresh", controller.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.JWTAuthWithConfig(cfg))
		{
			protected.PUT("/change-password", controller.ChangePassword)
			protected.GET("/me", controller.GetMe)
			protected.PUT("/profile", controller.UpdateProfile)
		}
	}

	admin := rg.Group("/admin/users")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.ListUsers)               // GET /api/v1/admin/users
		admin.PUT("/:id/role", controller.UpdateUserRole) // PUT /api/v1/admin/users/:id/role
		admin.DELETE("/:id", controller.DeleteUser)       // DELETE /api/v1/admin/users/:id
	}
}
