package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-reservation/internal/config"
)

const secret = "test-secret"

func token(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

type seen struct {
	id    uint64
	role  string
	email string
}

func serve(mw []echo.MiddlewareFunc, authz string) (*httptest.ResponseRecorder, *seen) {
	e := echo.New()
	got := &seen{}
	e.GET("/x", func(c echo.Context) error {
		got.id, got.role, got.email = UserID(c), Role(c), Email(c)
		return c.NoContent(http.StatusNoContent)
	}, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestJWTAuth(t *testing.T) {
	valid := token(t, secret, jwt.MapClaims{
		"sub": "42", "role": "STAFF", "email": "desk@homestay.vn",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := token(t, secret, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()})
	forged := token(t, "other-secret", jwt.MapClaims{"sub": "42"})

	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve([]echo.MiddlewareFunc{JWTAuth(secret)}, tt.authz)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	_, got := serve([]echo.MiddlewareFunc{JWTAuth(secret)}, "Bearer "+valid)
	assert.Equal(t, seen{42, "STAFF", "desk@homestay.vn"}, *got)
}

func TestOptionalJWT(t *testing.T) {
	rec, got := serve([]echo.MiddlewareFunc{OptionalJWT(secret)}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, seen{}, *got)

	numeric := token(t, secret, jwt.MapClaims{"sub": 9, "role": "CUSTOMER", "email": "an@example.com"})
	rec, got = serve([]echo.MiddlewareFunc{OptionalJWT(secret)}, "Bearer "+numeric)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, seen{9, "CUSTOMER", "an@example.com"}, *got)

	rec, _ = serve([]echo.MiddlewareFunc{OptionalJWT(secret)}, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	staff := token(t, secret, jwt.MapClaims{"sub": "1", "role": "STAFF"})
	customer := token(t, secret, jwt.MapClaims{"sub": "2", "role": "CUSTOMER"})
	mw := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole("STAFF", "ADMIN")}

	rec, _ := serve(mw, "Bearer "+staff)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = serve(mw, "Bearer "+customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTokenBucketFallsBackToLocalLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRedisCacheDisabledWithoutClient(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}
	rec, _ := serve([]echo.MiddlewareFunc{NewRedisCache(cfg, nil)}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"rooms":[]}`))
	require.NoError(t, err)
	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"rooms":[]}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}
