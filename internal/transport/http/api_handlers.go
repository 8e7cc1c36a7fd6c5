package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/auth"
	"github.com/vovakirdan/eventlify-server/internal/config"
)

// APIHandlers provides the signup and session endpoints.
type APIHandlers struct {
	authService *auth.Service
	cfg         config.AuthConfig
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, cfg config.AuthConfig, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		cfg:         cfg,
		log:         logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyOTPRequest represents the OTP verification request body.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// MessageResponse carries a human-readable status.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Signup starts OTP verification for a new account.
// POST /api/users/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.authService.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name, valid email and password are required"})
		return
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		return
	case errors.Is(err, auth.ErrMailDelivery):
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to send otp")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to send otp"})
		return
	default:
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to sign up user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "OTP sent to email"})
}

// VerifyOTP completes signup and opens a session.
// POST /api/users/verify-otp
func (h *APIHandlers) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.authService.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrOTPNotRequested):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "OTP not generated for this email"})
		return
	case errors.Is(err, auth.ErrOTPExpired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "OTP expired, please sign up again"})
		return
	case errors.Is(err, auth.ErrOTPIncorrect):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "incorrect OTP"})
		return
	case errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and otp are required"})
		return
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		return
	default:
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to verify otp")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.setSessionCookie(c, session.Token)
	h.log.Info().Str("user_id", session.User.ID).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: session.Token, User: userResponse(session.User)})
}

// Login handles user login.
// POST /api/users/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "user not registered"})
		return
	case errors.Is(err, auth.ErrWrongPassword):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "incorrect password"})
		return
	case errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
		return
	default:
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.setSessionCookie(c, session.Token)
	h.log.Info().Str("user_id", session.User.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: session.Token, User: userResponse(session.User)})
}

// AuthStatus reports the user behind the current session.
// GET /api/users/auth-status
func (h *APIHandlers) AuthStatus(c *gin.Context) {
	claims := &auth.Claims{UserID: currentUserID(c)}
	user, err := h.authService.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load current user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// Logout clears the session cookie.
// POST /api/users/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *APIHandlers) setSessionCookie(c *gin.Context, token string) {
	ttl := h.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, token, int(ttl.Seconds()), "/", "", h.cfg.CookieSecure, true)
}
