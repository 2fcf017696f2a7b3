package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/models"
)

func identityHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user_id": GetUserID(r.Context()),
			"email":   GetEmail(r.Context()),
			"admin":   IsAdmin(r.Context()),
		})
	})
}

func tokenFor(t *testing.T, jwt *auth.JWTManager, role models.Role) string {
	t.Helper()
	token, err := jwt.Generate(&models.User{ID: "user-1", Email: "jane@example.com", Role: role})
	require.NoError(t, err)
	return token
}

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	other := auth.NewJWTManager("other-secret", time.Hour)
	handler := RequireAuth(jwt)(identityHandler())

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + tokenFor(t, other, models.RoleUser), wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + tokenFor(t, jwt, models.RoleUser), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-1", body["user_id"])
				assert.Equal(t, "jane@example.com", body["email"])
				assert.Equal(t, false, body["admin"])
			} else {
				assert.NotEmpty(t, body["message"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	handler := OptionalAuth(jwt)(identityHandler())

	for _, header := range []string{"", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":""`)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, jwt, models.RoleUser))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), `"user_id":"user-1"`)
}

func TestRequireAdmin(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	handler := RequireAuth(jwt)(RequireAdmin(identityHandler()))

	tests := []struct {
		role       models.Role
		wantStatus int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, jwt, tt.role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.wantStatus, rec.Code, "role %s", tt.role)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Hour)
	rl.now = func() time.Time { return now }

	allowed, remaining, _ := rl.Allow("10.0.0.1")
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)

	now = now.Add(10 * time.Minute)
	allowed, remaining, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)

	now = now.Add(10 * time.Minute)
	allowed, _, retryAfter := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Equal(t, 40*time.Minute, retryAfter)

	allowed, _, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed, "clients are limited independently")

	// The first request leaves the window.
	now = now.Add(41 * time.Minute)
	allowed, _, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Hour)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	now = now.Add(2 * time.Hour)
	rl.Allow("c")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.hits, 1)
	assert.Contains(t, rl.hits, "c")
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/pledges", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "message")
}

func TestLoggingKeepsStatusAndRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logging)
	var pattern string
	r.Get("/api/pledges/{id}", func(w http.ResponseWriter, r *http.Request) {
		pattern = RoutePattern(r)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pledges/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/api/pledges/{id}", pattern)
}
