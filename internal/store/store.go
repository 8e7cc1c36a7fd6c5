package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist or its id is malformed.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// User represents a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PendingUser is a signup awaiting OTP verification.
type PendingUser struct {
	Name         string
	Email        string
	PasswordHash string
	OTP          string
	ExpiresAt    time.Time
}

// Category classifies an event.
type Category string

const (
	CategoryMusic      Category = "Music"
	CategorySports     Category = "Sports"
	CategoryTravel     Category = "Travel"
	CategoryHealth     Category = "Health"
	CategoryFood       Category = "Food"
	CategoryArt        Category = "Art"
	CategoryFashion    Category = "Fashion"
	CategoryBeauty     Category = "Beauty"
	CategoryTechnology Category = "Technology"
	CategoryFilm       Category = "Film"
	CategoryOther      Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryMusic, CategorySports, CategoryTravel, CategoryHealth, CategoryFood, CategoryArt,
	CategoryFashion, CategoryBeauty, CategoryTechnology, CategoryFilm, CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Event is a scheduled happening users can register for and attend live.
type Event struct {
	ID              string
	Title           string
	Description     string
	Date            time.Time
	Time            string // free-form start time, e.g. "18:30"
	Location        string
	Category        Category
	CoverImage      string
	CreatorID       string
	RegisteredUsers []string
	LiveCount       int64
	QnA             []Question
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRegistered reports whether userID is among the registered attendees.
func (e *Event) IsRegistered(userID string) bool {
	for _, id := range e.RegisteredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Question is an entry on an event's Q&A board.
type Question struct {
	ID         string
	Text       string
	AuthorID   string
	AuthorName string
	Answers    []Answer
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Answer is a reply to a question.
type Answer struct {
	ID         string
	Text       string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
}

// EventUpdate carries the mutable event fields. Nil fields are left unchanged.
type EventUpdate struct {
	Title       *string
	Description *string
	Date        *time.Time
	Time        *string
	Location    *string
	Category    *Category
	CoverImage  *string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// PendingUserStore keeps signups until their OTP is verified.
type PendingUserStore interface {
	// UpsertPendingUser creates or replaces the pending signup for the email.
	UpsertPendingUser(ctx context.Context, p *PendingUser) error

	GetPendingUser(ctx context.Context, email string) (*PendingUser, error)

	DeletePendingUser(ctx context.Context, email string) error
}

// EventStore handles event persistence.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *Event) (*Event, error)

	GetEvent(ctx context.Context, id string) (*Event, error)

	// ListEvents returns all events, newest date first.
	ListEvents(ctx context.Context) ([]*Event, error)

	UpdateEvent(ctx context.Context, id string, upd EventUpdate) (*Event, error)

	DeleteEvent(ctx context.Context, id string) error

	// AddRegistration registers userID for the event. Returns ErrConflict if already registered.
	AddRegistration(ctx context.Context, eventID, userID string) error

	// RemoveRegistration unregisters userID. Returns ErrNotFound if it was not registered.
	RemoveRegistration(ctx context.Context, eventID, userID string) error

	// ListEventsRegistered returns events userID registered for, newest date first.
	ListEventsRegistered(ctx context.Context, userID string) ([]*Event, error)

	// ListEventsCreated returns events created by userID, newest date first.
	ListEventsCreated(ctx context.Context, userID string) ([]*Event, error)
}

// QnAStore handles the Q&A board of an event.
type QnAStore interface {
	AddQuestion(ctx context.Context, eventID string, q *Question) (*Question, error)

	// AddAnswer appends an answer and returns the updated question.
	AddAnswer(ctx context.Context, eventID, questionID string, a *Answer) (*Question, error)
}

// LiveCountStore is the durable live attendance counter.
// Implementations must apply increments atomically and never store a value below zero.
type LiveCountStore interface {
	// GetLiveCount returns the persisted live count of an event.
	GetLiveCount(ctx context.Context, eventID string) (int64, error)

	// IncrementLiveCount adds delta to the live count, flooring at zero, and returns the new value.
	IncrementLiveCount(ctx context.Context, eventID string, delta int64) (int64, error)

	// ResetLiveCounts zeroes every live count and returns the number of events changed.
	ResetLiveCounts(ctx context.Context) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	PendingUserStore
	EventStore
	QnAStore
	LiveCountStore

	// Close releases underlying resources.
	Close() error
}
