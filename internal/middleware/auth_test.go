package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-rental/internal/auth"
	"github.com/ukydev/fleet-rental/internal/models"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	service, err := auth.NewService("middleware-secret", time.Hour)
	require.NoError(t, err)
	return service
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	t.Run("valid token", func(t *testing.T) {
		op := &models.Operator{Username: "desk", Role: models.RoleOperator}
		token, _ := authService.GenerateToken(op)

		req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			claims, ok := GetClaimsFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, op.Username, claims.Username)
			assert.Equal(t, op.Role, claims.Role)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("read-only and public requests skip auth", func(t *testing.T) {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodGet, "/api/fleet", nil),
			httptest.NewRequest(http.MethodPost, "/api/auth/login", nil),
			httptest.NewRequest(http.MethodHead, "/health", nil),
		} {
			w := httptest.NewRecorder()
			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.True(t, handlerCalled, "%s %s", req.Method, req.URL.Path)
		}
	})
}

func TestAuthMiddleware_RequireToken(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	var gotClaims *models.Claims
	handler := middleware.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetClaimsFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fleet", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, gotClaims)

	token, err := authService.GenerateToken(&models.Operator{Username: "front", Role: models.RoleViewer})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/fleet", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, models.RoleViewer, gotClaims.Role)
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	tests := []struct {
		name       string
		role       models.Role
		expectCode int
	}{
		{"admin may load", models.RoleAdmin, http.StatusOK},
		{"operator may load", models.RoleOperator, http.StatusOK},
		{"viewer may not load", models.RoleViewer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := authService.GenerateToken(&models.Operator{Username: "u", Role: tt.role})
			req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(middleware.RequirePermission("load_fleet")(handler)).ServeHTTP(w, req)
			assert.Equal(t, tt.expectCode, w.Code)
			assert.Equal(t, tt.expectCode == http.StatusOK, handlerCalled)
		})
	}

	t.Run("no claims in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fleet/lines", nil)
		w := httptest.NewRecorder()
		middleware.RequirePermission("load_fleet")(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	middleware := NewRateLimitMiddleware(false)

	t.Run("rate limit not exceeded", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/fleet", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.RateLimit(5, 60)(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rate limit exceeded then window passes", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		middleware.now = func() time.Time { return now }

		req := httptest.NewRequest("GET", "/api/fleet", nil)
		req.RemoteAddr = "10.0.0.7:4000"
		handler := middleware.RateLimit(1, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		now = now.Add(61 * time.Second)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimitMiddleware_ForwardedHeaderIgnoredWithoutTrustedProxy(t *testing.T) {
	middleware := NewRateLimitMiddleware(false)
	handler := middleware.RateLimit(1, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for _, forwarded := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest("GET", "/api/fleet", nil)
		req.RemoteAddr = "10.0.0.7:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_EvictsIdleClients(t *testing.T) {
	middleware := NewRateLimitMiddleware(false)
	now := time.Unix(1_700_000_000, 0)
	middleware.now = func() time.Time { return now }
	handler := middleware.RateLimit(10, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		req := httptest.NewRequest("GET", "/api/fleet", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Len(t, middleware.requests, 3)

	now = now.Add(2 * time.Minute)
	req := httptest.NewRequest("GET", "/api/fleet", nil)
	req.RemoteAddr = "10.0.0.9:1"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, middleware.requests, 1)
	assert.Contains(t, middleware.requests, "10.0.0.9")
}

func TestGetClaimsFromContext(t *testing.T) {
	claims := &models.Claims{
		Username: "desk",
		Role:     models.RoleAdmin,
	}

	ctx := context.WithValue(context.Background(), ClaimsContextKey, claims)

	retrieved, ok := GetClaimsFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims.Username, retrieved.Username)
	assert.Equal(t, claims.Role, retrieved.Role)

	_, ok = GetClaimsFromContext(context.Background())
	assert.False(t, ok)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.9:5555"
	req.Header.Set("X-Real-IP", "10.1.1.1")
	req.Header.Set("X-Forwarded-For", "10.2.2.2, 10.3.3.3")

	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		expected   string
	}{
		{"direct client ignores forwarding headers", false, "192.168.1.9:5555", "192.168.1.9"},
		{"trusted proxy uses first forwarded address", true, "192.168.1.9:5555", "10.2.2.2"},
		{"ipv6 remote address", false, "[::1]:8080", "::1"},
		{"remote address without port", false, "192.168.1.9", "192.168.1.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.expected, getClientIP(req, tt.trustProxy))
		})
	}

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.1.1", getClientIP(req, true))
}
