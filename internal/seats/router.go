package seats

import (
	"eventix/internal/shared/config"
	"eventix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	// PUBLIC SEAT MAP

	seatMap := rg.Group("/events/:id/seats")
	seatMap.Use(middleware.OptionalAuthWithConfig(cfg))
	{
		seatMap.GET("", controller.GetSeatMap) // GET /api/v1/events/:id/seats
	}

	// USER SEAT LOCKS

	locks := rg.Group("/events/:id/seats")
	locks.Use(middleware.JWTAuthWithConfig(cfg))
	{
		locks.POST("/lock", controller.LockSeats)     // POST /api/v1/events/:id/seats/lock
		locks.POST("/unlock", controller.UnlockSeats) // POST /api/v1/events/:id/seats/unlock
	}
}
