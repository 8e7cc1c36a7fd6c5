package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

// DefaultOTPTTL is how long a signup code stays valid.
const DefaultOTPTTL = 10 * time.Minute

var (
	// ErrInvalidInput is returned when signup or login fields are missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists is returned when signing up with an email that is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrOTPNotRequested is returned when verifying an email with no pending signup.
	ErrOTPNotRequested = errors.New("otp not generated for this email")
	// ErrOTPExpired is returned when the pending signup is older than the OTP TTL.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPIncorrect is returned when the submitted code does not match.
	ErrOTPIncorrect = errors.New("incorrect otp")
	// ErrUserNotFound is returned when logging in with an unknown email.
	ErrUserNotFound = errors.New("user not registered")
	// ErrWrongPassword is returned when the password does not match.
	ErrWrongPassword = errors.New("incorrect password")
	// ErrMailDelivery is returned when the OTP could not be handed to the mailer.
	ErrMailDelivery = errors.New("failed to send otp")
)

// OTPMailer delivers signup codes.
type OTPMailer interface {
	SendOTP(ctx context.Context, email, name, otp string) error
}

// Session is the result of a successful verification or login.
type Session struct {
	Token string
	User  *store.User
}

// Service provides authentication operations.
type Service struct {
	users     store.UserStore
	pending   store.PendingUserStore
	mailer    OTPMailer
	jwtConfig *JWTConfig
	otpTTL    time.Duration

	now         func() time.Time
	generateOTP func() (string, error)
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, pending store.PendingUserStore, mailer OTPMailer, jwtConfig *JWTConfig, otpTTL time.Duration) *Service {
	if otpTTL <= 0 {
		otpTTL = DefaultOTPTTL
	}
	return &Service{
		users:       users,
		pending:     pending,
		mailer:      mailer,
		jwtConfig:   jwtConfig,
		otpTTL:      otpTTL,
		now:         time.Now,
		generateOTP: GenerateOTP,
	}
}

// Signup stores a pending account and mails it a fresh OTP.
// Signing up again before verifying replaces the previous code.
func (s *Service) Signup(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || password == "" || !validEmail(email) {
		return ErrInvalidInput
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	otp, err := s.generateOTP()
	if err != nil {
		return err
	}

	pending := &store.PendingUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		OTP:          otp,
		ExpiresAt:    s.now().Add(s.otpTTL),
	}
	if err := s.pending.UpsertPendingUser(ctx, pending); err != nil {
		return fmt.Errorf("store pending user: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, name, otp); err != nil {
		return fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}
	return nil
}

// VerifyOTP turns a pending signup into a user and returns a session for it.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (*Session, error) {
	email = normalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return nil, ErrInvalidInput
	}

	pending, err := s.pending.GetPendingUser(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOTPNotRequested
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pending user: %w", err)
	}

	if s.now().After(pending.ExpiresAt) {
		if err := s.pending.DeletePendingUser(ctx, email); err != nil {
			return nil, fmt.Errorf("delete expired signup: %w", err)
		}
		return nil, ErrOTPExpired
	}
	if pending.OTP != otp {
		return nil, ErrOTPIncorrect
	}

	user, err := s.users.CreateUser(ctx, pending.Name, pending.Email, pending.PasswordHash)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.pending.DeletePendingUser(ctx, email); err != nil {
		return nil, fmt.Errorf("delete pending user: %w", err)
	}

	return s.session(user)
}

// Login validates credentials and returns a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrWrongPassword
	}

	return s.session(user)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// CurrentUser resolves the user behind validated claims.
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*store.User, error) {
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) session(user *store.User) (*Session, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
