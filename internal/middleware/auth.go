package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/auth"
	"github.com/ukydev/fleet-rental/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate validates JWT tokens on mutating requests and adds the claims
// to the request context. Read-only requests and public paths pass through.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	protected := m.RequireToken(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r) {
			next.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

// RequireToken validates the bearer token whatever the request method and
// adds the claims to the request context.
func (m *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		token, err := m.authService.ExtractTokenFromHeader(authHeader)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission middleware checks if the caller's role allows an action
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}

			if !claims.Role.HasPermission(action) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext extracts token claims from request context
func GetClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.Claims)
	return claims, ok
}

// shouldSkipAuth determines if authentication should be skipped for a request
func shouldSkipAuth(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return true
	}
	skipPaths := []string{
		"/api/auth/login",
		"/health",
	}
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(r.URL.Path, skipPath) {
			return true
		}
	}
	return false
}

// RateLimitMiddleware provides basic rate limiting
type RateLimitMiddleware struct {
	requests   map[string][]int64 // IP -> timestamps, oldest first
	mu         sync.Mutex
	now        func() time.Time
	trustProxy bool
	lastSweep  int64
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Forwarding
// headers are only used to identify clients when trustProxy is set.
func NewRateLimitMiddleware(trustProxy bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests:   make(map[string][]int64),
		now:        time.Now,
		trustProxy: trustProxy,
	}
}

// RateLimit applies rate limiting based on IP address
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r, m.trustProxy)
			now := m.now().Unix()
			windowStart := now - int64(windowSeconds)

			m.mu.Lock()
			if now-m.lastSweep >= int64(windowSeconds) {
				m.sweep(windowStart)
				m.lastSweep = now
			}
			recent := m.requests[clientIP][:0]
			for _, ts := range m.requests[clientIP] {
				if ts > windowStart {
					recent = append(recent, ts)
				}
			}
			if len(recent) >= maxRequests {
				m.requests[clientIP] = recent
				m.mu.Unlock()
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			m.requests[clientIP] = append(recent, now)
			m.mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

// sweep drops clients with no request inside the window. Callers hold mu.
func (m *RateLimitMiddleware) sweep(windowStart int64) {
	for ip, ts := range m.requests {
		if len(ts) == 0 || ts[len(ts)-1] <= windowStart {
			delete(m.requests, ip)
		}
	}
}

// getClientIP extracts the client IP from the request. X-Forwarded-For and
// X-Real-IP are only honoured behind a trusted proxy.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
