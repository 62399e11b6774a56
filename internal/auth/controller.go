package auth

import (
	"net/http"

	"eventix/internal/shared/apperr"
	"eventix/internal/shared/middleware"
	"eventix/internal/shared/utils/request"
	"eventix/internal/shared/utils/response"
	"eventix/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	resp, err := c.service.Register(ctx.Request.Context(), &req)
	if err != nil {
		response.RespondError(ctx, "Failed to register user", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "User registered successfully", resp, nil)
}

func (c *Controller) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	req.ClientIP = ctx.ClientIP()
	resp, err := c.service.Login(ctx.Request.Context(), &req)
	if err != nil {
		response.RespondError(ctx, "Invalid email or password", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Login successful", resp, nil)
}

func (c *Controller) RefreshToken(ctx *gin.Context) {
	var req RefreshTokenRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	tokenPair, err := c.service.RefreshToken(ctx.Request.Context(), req.RefreshToken)
	if err != nil {
		response.RespondError(ctx, "Invalid or expired refresh token", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Token refreshed successfully", tokenPair, nil)
}

func (c *Controller) ChangePassword(ctx *gin.Context) {
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "User not authenticated", err)
		return
	}

	var req ChangePasswordRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	if err := c.service.ChangePassword(ctx.Request.Context(), userID, &req); err != nil {
		response.RespondError(ctx, "Failed to change password", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Password changed successfully", nil, nil)
}

func (c *Controller) GetMe(ctx *gin.Context) {
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "User not authenticated", err)
		return
	}

	profile, err := c.service.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, "Failed to load profile", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User data retrieved successfully", profile, nil)
}

func (c *Controller) UpdateProfile(ctx *gin.Context) {
	userID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "User not authenticated", err)
		return
	}

	var req UpdateProfileRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	profile, err := c.service.UpdateProfile(ctx.Request.Context(), userID, &req)
	if err != nil {
		response.RespondError(ctx, "Failed to update profile", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Profile updated successfully", profile, nil)
}

func (c *Controller) ListUsers(ctx *gin.Context) {
	var query users.UserListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	list, err := c.service.ListUsers(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, "Failed to list users", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Users retrieved successfully", list, nil)
}

func (c *Controller) UpdateUserRole(ctx *gin.Context) {
	actorID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "User not authenticated", err)
		return
	}
	userID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid user ID", apperr.Validation("invalid user ID"))
		return
	}

	var req UpdateRoleRequest
	if err := request.BindJSON(ctx, &req); err != nil {
		response.RespondValidationError(ctx, err)
		return
	}

	user, err := c.service.UpdateUserRole(ctx.Request.Context(), actorID, userID, users.Role(req.Role))
	if err != nil {
		response.RespondError(ctx, "Failed to update role", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Role updated successfully", user, nil)
}

func (c *Controller) DeleteUser(ctx *gin.Context) {
	actorID, _, err := middleware.CurrentUser(ctx)
	if err != nil {
		response.RespondError(ctx, "User not authenticated", err)
		return
	}
	userID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid user ID", apperr.Validation("invalid user ID"))
		return
	}

	if err := c.service.DeleteUser(ctx.Request.Context(), actorID, userID); err != nil {
		response.RespondError(ctx, "Failed to delete user", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User deleted successfully", nil, nil)
}
