package response

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventix/internal/shared/apperr"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(t *testing.T, err error) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer

	r := gin.New()
	r.Use(logger.RequestLogger(logger.NewJSON(&buf), "user_id"))
	r.GET("/x", func(c *gin.Context) { RespondError(c, "Failed", err) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w, buf.String()
}

func TestRespondErrorLogsServerErrors(t *testing.T) {
	w, logs := serve(t, errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Contains(t, logs, `"msg":"HTTP Error"`)
	assert.Contains(t, logs, `"error":"connection reset by peer"`)
}

func TestRespondErrorSkipsClientErrors(t *testing.T) {
	w, logs := serve(t, apperr.NotFound("booking %s not found", "b-1"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"NOT_FOUND"`)
	assert.NotContains(t, logs, "HTTP Error")
}
