package response

import (
	"errors"
	"net/http"

	"eventix/internal/shared/apperr"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps err to its HTTP status and writes the error envelope.
// Errors without a kind are reported as internal without leaking the cause.
func RespondError(c *gin.Context, message string, err error) {
	body := ErrorBody{Kind: string(apperr.KindInternal), Message: "internal server error"}
	code := http.StatusInternalServerError

	if e, ok := apperr.As(err); ok {
		code = apperr.HTTPStatus(e.Kind)
		body = ErrorBody{Kind: string(e.Kind), Message: e.Message, Details: e.Details}
	}

	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.FromGin(c).LogHTTPError(c, err, code)
	}
	c.AbortWithStatusJSON(code, StandardApiResponse{
		Status:     "error",
		StatusCode: code,
		Message:    message,
		Errors:     body,
	})
}

// RespondValidationError reports a request that failed binding.
func RespondValidationError(c *gin.Context, err error) {
	body := ErrorBody{Kind: string(apperr.KindValidation), Message: err.Error()}

	var verrs validator.ValidationErrors
	if e, ok := apperr.As(err); ok {
		body.Message = e.Message
		body.Details = e.Details
	} else if errors.As(err, &verrs) {
		fields := make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		body.Message = "request validation failed"
		body.Details = fields
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, StandardApiResponse{
		Status:     "error",
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request data",
		Errors:     body,
	})
}
