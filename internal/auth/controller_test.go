package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventix/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T) (*gin.Engine, Service, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, store, logs := newTestService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), &users.User{
		FirstName: "Root", LastName: "Admin", Email: "admin@example.com", Password: string(hash), Role: users.RoleAdmin,
	}))

	r := gin.New()
	SetupAuthRoutes(r.Group("/api/v1"), NewController(svc), testConfig())
	return r, svc, logs
}

func call(r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()
	w, env := call(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.AccessToken
}

func TestLoginRouteRecordsClientIP(t *testing.T) {
	r, _, logs := newTestEngine(t)

	w, _ := call(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "not-it"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, logs.String(), `"ip":"198.51.100.7"`)

	// The client IP is not a request field
	w, _ = call(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "admin-secret", "ClientIP": "10.0.0.1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileRoute(t *testing.T) {
	r, _, _ := newTestEngine(t)
	token := login(t, r, "admin@example.com", "admin-secret")

	w, env := call(r, http.MethodPut, "/api/v1/auth/profile", token, map[string]string{"last_name": "Operator"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Root", profile.FirstName)
	assert.Equal(t, "Operator", profile.LastName)

	w, _ = call(r, http.MethodPut, "/api/v1/auth/profile", token, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(r, http.MethodPut, "/api/v1/auth/profile", "", map[string]string{"last_name": "Nobody"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminUserRoutes(t *testing.T) {
	r, svc, _ := newTestEngine(t)
	ada := register(t, svc, "ada@example.com", "")

	w, _ := call(r, http.MethodGet, "/api/v1/admin/users", ada.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := login(t, r, "admin@example.com", "admin-secret")
	w, env := call(r, http.MethodGet, "/api/v1/admin/users?role=USER", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list UserListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, ada.User.ID, list.Users[0].ID)

	w, _ = call(r, http.MethodGet, "/api/v1/admin/users?role=ROOT", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = call(r, http.MethodPut, "/api/v1/admin/users/"+ada.User.ID+"/role", admin, map[string]string{"role": "ORGANIZER"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var promoted UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &promoted))
	assert.Equal(t, "ORGANIZER", promoted.Role)

	w, _ = call(r, http.MethodPut, "/api/v1/admin/users/not-a-uuid/role", admin, map[string]string{"role": "USER"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(r, http.MethodDelete, "/api/v1/admin/users/"+ada.User.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = call(r, http.MethodDelete, "/api/v1/admin/users/"+ada.User.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
