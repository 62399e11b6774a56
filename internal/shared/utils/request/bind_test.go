package request

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eventix/internal/shared/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payRequest struct {
	Method string `json:"method" binding:"required,payment_method"`
	Amount int    `json:"amount" binding:"gte=0"`
}

func bindBody(t *testing.T, body string, dst interface{}) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return BindJSON(c, dst)
}

func TestBindJSONAcceptsKnownFields(t *testing.T) {
	var req payRequest
	require.NoError(t, bindBody(t, `{"method":"card","amount":10}`, &req))
	assert.Equal(t, "card", req.Method)
	assert.Equal(t, 10, req.Amount)
}

func TestBindJSONRejectsUnknownFields(t *testing.T) {
	var req payRequest
	err := bindBody(t, `{"method":"card","amount":10,"discount":5}`, &req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBindJSONRejectsTrailingData(t *testing.T) {
	var req payRequest
	err := bindBody(t, `{"method":"card"}{"method":"upi"}`, &req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBindJSONRejectsEmptyBody(t *testing.T) {
	var req payRequest
	assert.Error(t, bindBody(t, ``, &req))
}

func TestBindJSONRunsCustomValidators(t *testing.T) {
	var req payRequest
	assert.Error(t, bindBody(t, `{"method":"cheque"}`, &req))
}
