package events

import (
	"net/http"

	"eventix/internal/shared/apperr"
	"eventix/internal/shared/middleware"
	"eventix/internal/shared/utils/request"
	"eventix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	GetAllEvents(c *gin.Context)
	UpdateEventStatus(c *gin.Context)
	UpdateEvent(c *gin.Context)
	DeleteEvent(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// ParseEventID reads the :id path parameter.
func ParseEventID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid event ID").WithDetail("id", c.Param("id"))
	}
	return id, nil
}

func (ctrl *controller) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := request.BindJSON(c, &req); err != nil {
		response.RespondValidationError(c, err)
		return
	}

	organizerID, _, err := middleware.CurrentUser(c)
	if err != nil {
		response.RespondError(c, "Not authenticated", err)
		return
	}

	event, err := ctrl.service.CreateEvent(c.Request.Context(), organizerID, req)
	if err != nil {
		response.RespondError(c, "Failed to create event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Event created successfully", event, nil)
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, err := ParseEventID(c)
	if err != nil {
		response.RespondError(c, "Invalid event ID", err)
		return
	}

	event, err := ctrl.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		response.RespondError(c, "Failed to get event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (ctrl *controller) GetAllEvents(c *gin.Context) {
	var query EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondValidationError(c, err)
		return
	}

	result, err := ctrl.service.ListEvents(c.Request.Context(), query)
	if err != nil {
		response.RespondError(c, "Failed to list events", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Events retrieved successfully", result, nil)
}

func (ctrl *controller) UpdateEventStatus(c *gin.Context) {
	eventID, err := ParseEventID(c)
	if err != nil {
		response.RespondError(c, "Invalid event ID", err)
		return
	}

	var req UpdateEventStatusRequest
	if err := request.BindJSON(c, &req); err != nil {
		response.RespondValidationError(c, err)
		return
	}

	userID, role, err := middleware.CurrentUser(c)
	if err != nil {
		response.RespondError(c, "Not authenticated", err)
		return
	}

	event, err := ctrl.service.UpdateStatus(c.Request.Context(), eventID, userID, role, req.Status)
	if err != nil {
		response.RespondError(c, "Failed to update event status", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event status updated successfully", event, nil)
}

func (ctrl *controller) UpdateEvent(c *gin.Context) {
	eventID, err := ParseEventID(c)
	if err != nil {
		response.RespondError(c, "Invalid event ID", err)
		return
	}

	var req UpdateEventRequest
	if err := request.BindJSON(c, &req); err != nil {
		response.RespondValidationError(c, err)
		return
	}

	userID, role, err := middleware.CurrentUser(c)
	if err != nil {
		response.RespondError(c, "Not authenticated", err)
		return
	}

	event, err := ctrl.service.UpdateEvent(c.Request.Context(), eventID, userID, role, req)
	if err != nil {
		response.RespondError(c, "Failed to update event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event updated successfully", event, nil)
}

func (ctrl *controller) DeleteEvent(c *gin.Context) {
	eventID, err := ParseEventID(c)
	if err != nil {
		response.RespondError(c, "Invalid event ID", err)
		return
	}

	userID, role, err := middleware.CurrentUser(c)
	if err != nil {
		response.RespondError(c, "Not authenticated", err)
		return
	}

	if err := ctrl.service.DeleteEvent(c.Request.Context(), eventID, userID, role); err != nil {
		response.RespondError(c, "Failed to delete event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event deleted successfully", nil, nil)
}
