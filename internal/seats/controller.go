package seats

import (
	"net/http"

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

func eventIDParam(ctx *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid event ID").WithDetail("id", ctx.Param("id"))
	}
	return id, nil
}

func (c *Controller) GetSeatMap(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid event ID", err)
		return
	}

	// Anonymous viewers are allowed; a valid token only adds held_by_you
	viewer, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		viewer = uuid.Nil
	}

	seatMap, err := c.service.GetSeatMap(ctx.Request.Context(), eventID, viewer)
	if err != nil {
		response.RespondError(ctx, "Failed to get seat map", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved successfully", seatMap, nil)
}

func (c *Controller) LockSeats(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid event ID", err)
		return
	}

	var req LockSeatsRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	result, err := c.service.LockSeats(ctx.Request.Context(), eventID, userID, req)
	if err != nil {
		response.RespondError(ctx, "Failed to lock seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats locked successfully", result, nil)
}

func (c *Controller) UnlockSeats(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RespondError(ctx, "Invalid event ID", err)
		return
	}

	var req UnlockSeatsRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "Not authenticated", err)
		return
	}

	result, err := c.service.UnlockSeats(ctx.Request.Context(), eventID, userID, req)
	if err != nil {
		response.RespondError(ctx, "Failed to unlock seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats unlocked successfully", result, nil)
}
