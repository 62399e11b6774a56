package events

import (
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"
	"eventix/internal/users"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	// Public routes - anyone can browse events
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.GetAllEvents) // GET /api/v1/events
		publicEvents.GET("/:id", controller.GetEvent) // GET /api/v1/events/:id
	}

	// Organizer routes - organizers and admins manage events
	manageEvents := router.Group("/events")
	manageEvents.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireRoles(users.RoleOrganizer, users.RoleAdmin))
	{
		manageEvents.POST("", controller.CreateEvent)                   // POST /api/v1/events
		manageEvents.PUT("/:id", controller.UpdateEvent)                // PUT /api/v1/events/:id
		manageEvents.DELETE("/:id", controller.DeleteEvent)             // DELETE /api/v1/events/:id
		manageEvents.PATCH("/:id/status", controller.UpdateEventStatus) // PATCH /api/v1/events/:id/status
	}
}
