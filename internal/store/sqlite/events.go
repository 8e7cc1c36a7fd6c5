package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

const eventColumns = `id, title, description, date, time, location, category, cover_image, creator_id, live_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*store.Event, error) {
	var (
		ev       store.Event
		category string
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time, &ev.Location,
		&category, &ev.CoverImage, &ev.CreatorID, &ev.LiveCount, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Category = store.Category(category)
	return &ev, nil
}

// CreateEvent inserts a new event and returns it with generated fields filled.
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *store.Event) (*store.Event, error) {
	now := time.Now().UTC()
	created := *ev
	created.ID = uuid.NewString()
	created.LiveCount = 0
	created.RegisteredUsers = []string{}
	created.QnA = []store.Question{}
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Category == "" {
		created.Category = store.CategoryOther
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		created.ID, created.Title, created.Description, created.Date.UTC(), created.Time, created.Location,
		string(created.Category), created.CoverImage, created.CreatorID, created.LiveCount, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return &created, nil
}

// GetEvent retrieves an event with its registrations and Q&A board.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query event: %w", err)
	}

	if err := s.loadDetails(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns all events ordered by date, newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date DESC, created_at DESC`
	return s.queryEvents(ctx, query)
}

// ListEventsRegistered returns events the user registered for.
func (s *SQLiteStore) ListEventsRegistered(ctx context.Context, userID string) ([]*store.Event, error) {
	query := `
		SELECT ` + prefixed("e.", eventColumns) + `
		FROM events e
		JOIN event_registrations r ON r.event_id = e.id
		WHERE r.user_id = ?
		ORDER BY e.date DESC, e.created_at DESC
	`
	return s.queryEvents(ctx, query, userID)
}

// ListEventsCreated returns events created by the user.
func (s *SQLiteStore) ListEventsCreated(ctx context.Context, userID string) ([]*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE creator_id = ? ORDER BY date DESC, created_at DESC`
	return s.queryEvents(ctx, query, userID)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]*store.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]*store.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	rows.Close()

	// Details are loaded after the cursor is closed: the pool holds a single connection.
	for _, ev := range events {
		if err := s.loadDetails(ctx, ev); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *SQLiteStore) loadDetails(ctx context.Context, ev *store.Event) error {
	users, err := s.registeredUsers(ctx, ev.ID)
	if err != nil {
		return err
	}
	ev.RegisteredUsers = users

	qna, err := s.listQuestions(ctx, ev.ID)
	if err != nil {
		return err
	}
	ev.QnA = qna
	return nil
}

func (s *SQLiteStore) registeredUsers(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM event_registrations WHERE event_id = ? ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// UpdateEvent applies the non-nil fields of upd.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, id string, upd store.EventUpdate) (*store.Event, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Date != nil {
		add("date", upd.Date.UTC())
	}
	if upd.Time != nil {
		add("time", *upd.Time)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Category != nil {
		add("category", string(*upd.Category))
	}
	if upd.CoverImage != nil {
		add("cover_image", *upd.CoverImage)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := `UPDATE events SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetEvent(ctx, id)
}

// DeleteEvent removes an event together with its registrations and Q&A.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddRegistration registers a user for an event.
func (s *SQLiteStore) AddRegistration(ctx context.Context, eventID, userID string) error {
	if err := s.eventExists(ctx, eventID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_registrations (event_id, user_id, created_at) VALUES (?, ?, ?)`,
		eventID, userID, time.Now().UTC(),
	)
	if err != nil {
		if isConstraintErr(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// RemoveRegistration unregisters a user from an event.
func (s *SQLiteStore) RemoveRegistration(ctx context.Context, eventID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) eventExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("query event: %w", err)
	}
	return nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
