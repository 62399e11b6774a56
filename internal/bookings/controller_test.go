package bookings_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventix/internal/bookings"
	"eventix/internal/shared/config"
	"eventix/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gateSecret = "gate-test-secret"

func gateToken(t *testing.T, role users.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"email":   "gate@example.com",
		"role":    string(role),
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(gateSecret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) engine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: gateSecret}}
	r := gin.New()
	bookings.SetupBookingRoutes(r.Group("/api/v1"), bookings.NewController(f.svc), cfg)
	return r
}

func verify(r *gin.Engine, token string, body map[string]string) (*httptest.ResponseRecorder, *bookings.Booking) {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env struct {
		Data *bookings.Booking `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env.Data
}

func TestVerifyRouteAcceptsTypedReference(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	res := f.book(t, f.alice, 0)
	r := f.engine()
	organizer := gateToken(t, users.RoleOrganizer)

	w, b := verify(r, organizer, map[string]string{"booking_reference": "  " + res.Booking.BookingReference + " "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, b)
	assert.Equal(t, res.Booking.BookingReference, b.BookingReference)
	assert.True(t, b.CheckedIn)

	w, _ = verify(r, organizer, map[string]string{"booking_reference": res.Booking.BookingReference})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "checked_in_at")
}

func TestVerifyRouteAcceptsScannedToken(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	res := f.book(t, f.alice, 0)
	r := f.engine()

	w, b := verify(r, gateToken(t, users.RoleAdmin), map[string]string{"qr_payload": res.Booking.VerificationToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, b)
	assert.Equal(t, res.Booking.ID, b.ID)
	assert.True(t, b.CheckedIn)

	stored, err := f.store.GetBooking(t.Context(), res.Booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.CheckedIn)
}

func TestVerifyRouteRejects(t *testing.T) {
	f := newFixture(t, 72*time.Hour)
	res := f.book(t, f.alice, 0)
	r := f.engine()
	organizer := gateToken(t, users.RoleOrganizer)

	w, _ := verify(r, gateToken(t, users.RoleUser), map[string]string{"booking_reference": res.Booking.BookingReference})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = verify(r, organizer, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = verify(r, organizer, map[string]string{"qr_payload": "not-a-code"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A token signed with another secret reads as an unknown code
	forged := bookings.NewVerificationSigner("other-secret", "eventix")
	token, err := forged.Sign(bookings.VerificationPayload{
		BookingID:        res.Booking.ID.String(),
		BookingReference: res.Booking.BookingReference,
	}, f.clock.Now(), f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	w, _ = verify(r, organizer, map[string]string{"qr_payload": token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Past the check-in window the scanned token no longer verifies
	f.clock.Advance(80 * time.Hour)
	w, _ = verify(r, organizer, map[string]string{"qr_payload": res.Booking.VerificationToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
