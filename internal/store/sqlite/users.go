package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	user := &store.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// UpsertPendingUser stores or replaces the pending signup for an email.
func (s *SQLiteStore) UpsertPendingUser(ctx context.Context, p *store.PendingUser) error {
	query := `
		INSERT INTO pending_users (email, name, password_hash, otp, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			password_hash = excluded.password_hash,
			otp = excluded.otp,
			expires_at = excluded.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, p.Email, p.Name, p.PasswordHash, p.OTP, p.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("upsert pending user: %w", err)
	}
	return nil
}

// GetPendingUser retrieves a pending signup by email.
func (s *SQLiteStore) GetPendingUser(ctx context.Context, email string) (*store.PendingUser, error) {
	query := `SELECT email, name, password_hash, otp, expires_at FROM pending_users WHERE email = ?`

	var p store.PendingUser
	err := s.db.QueryRowContext(ctx, query, email).Scan(&p.Email, &p.Name, &p.PasswordHash, &p.OTP, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query pending user: %w", err)
	}
	return &p, nil
}

// DeletePendingUser removes a pending signup. Missing rows are not an error.
func (s *SQLiteStore) DeletePendingUser(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_users WHERE email = ?`, email); err != nil {
		return fmt.Errorf("delete pending user: %w", err)
	}
	return nil
}
