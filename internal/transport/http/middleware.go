package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/auth"
	"github.com/vovakirdan/eventlify-server/internal/metrics"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the context key for storing the user's email.
	ContextKeyEmail = "email"
)

// AuthMiddleware validates the JWT from the session cookie or an
// "Authorization: Bearer" header.
func AuthMiddleware(authService *auth.Service, cookieName string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromRequest(c, cookieName)
		if !ok {
			logger.Debug().Msg("missing auth token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

func tokenFromRequest(c *gin.Context, cookieName string) (string, bool) {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}

	// Extract token from "Bearer <token>"
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
		return parts[1], true
	}
	return "", false
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// RateLimitMiddleware rejects requests beyond a shared token bucket.
func RateLimitMiddleware(perSecond float64, burst int) gin.HandlerFunc {
	limiter := newRateLimiter(perSecond, burst)
	return func(c *gin.Context) {
		if !limiter.allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// MetricsMiddleware records request counts and latency per method.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		timer.ObserveDurationVec(metrics.APIRequestDuration, c.Request.Method)
		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
