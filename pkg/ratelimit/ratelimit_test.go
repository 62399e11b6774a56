package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventix/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		DefaultRequests: 5,
		PublicRequests:  5,
		AuthRequests:    2,
		BookingRequests: 3,
		SeatRequests:    3,
		AdminRequests:   5,
	}
}

func newTestLimiter(t *testing.T, cfg Config) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client, cfg), mr
}

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 2, res.Limit)

	res, err = limiter.IsAllowed(ctx, "10.0.0.2", RateLimitTypeAuth)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "limits are per client")

	res, err = limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBooking)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "limits are per route class")
}

func TestSlidingWindowForgetsOldRequests(t *testing.T) {
	limiter, _ := newTestLimiter(t, testConfig())
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
		require.NoError(t, err)
	}
	res, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	now = now.Add(61 * time.Second)
	res, err = limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRequestsInSameMillisecondAllCount(t *testing.T) {
	limiter, _ := newTestLimiter(t, testConfig())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	allowed := 0
	for i := 0; i < 5; i++ {
		res, err := limiter.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeSeat)
		require.NoError(t, err)
		if res.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestDisabledWhitelistedAndExemptBypassRedis(t *testing.T) {
	cfg := testConfig()
	cfg.WhitelistedIPs = []string{"192.168.0.0/16", "10.9.9.9", "not-an-ip"}
	limiter, mr := newTestLimiter(t, cfg)
	ctx := context.Background()

	for _, ip := range []string{"192.168.4.20", "10.9.9.9"} {
		for i := 0; i < 5; i++ {
			res, err := limiter.IsAllowed(ctx, ip, RateLimitTypeAuth)
			require.NoError(t, err)
			assert.True(t, res.Allowed, ip)
		}
	}

	res, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeHealth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, mr.Keys())

	cfg.Enabled = false
	off, _ := newTestLimiter(t, cfg)
	for i := 0; i < 5; i++ {
		res, err := off.IsAllowed(ctx, "10.0.0.1", RateLimitTypeAuth)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestGetRateLimitType(t *testing.T) {
	cases := map[string]RateLimitType{
		"/health":                         RateLimitTypeHealth,
		"/api/v1/payments/webhook":        RateLimitTypeWebhook,
		"/api/v1/admin/bookings":          RateLimitTypeAdmin,
		"/api/v1/auth/login":              RateLimitTypeAuth,
		"/api/v1/events/:id/seats/lock":   RateLimitTypeSeat,
		"/api/v1/events/:id/seats/unlock": RateLimitTypeSeat,
		"/api/v1/bookings/:id/cancel":     RateLimitTypeBooking,
		"/api/v1/payments/methods":        RateLimitTypeBooking,
		"/api/v1/events/:id/seats":        RateLimitTypePublic,
		"/api/v1/events/:id/ws":           RateLimitTypePublic,
		"/api/v1/something-else":          RateLimitTypeDefault,
	}
	for path, want := range cases {
		assert.Equal(t, want, getRateLimitType(path), path)
	}
}

func newTestEngine(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(limiter, logger.Discard()))
	r.POST("/api/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, testConfig())
	r := newTestEngine(limiter)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do().Code)

	w = do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestMiddlewareFailsOpenWhenRedisIsDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, testConfig())
	mr.Close()
	r := newTestEngine(limiter)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
